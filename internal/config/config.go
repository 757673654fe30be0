package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	JWT struct {
		AccessSecret      string `env:"ACCESS_SECRET,required"`
		RefreshSecret     string `env:"REFRESH_SECRET,required"`
		AccessExpiration  int    `env:"ACCESS_EXPIRATION" envDefault:"900"`     // 15 分钟
		RefreshExpiration int    `env:"REFRESH_EXPIRATION" envDefault:"604800"` // 7 天
	} `envPrefix:"JWT_"`
	PasswordReset struct {
		Expiration int `env:"EXPIRATION" envDefault:"3600"` // 1 小时
	} `envPrefix:"PASSWORD_RESET_"`
	Seed struct {
		EmailDomain string `env:"EMAIL_DOMAIN" envDefault:"workzen.local"`
		User        struct {
			Password string `env:"PASSWORD" envDefault:"changeme123"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
		FromName    string `env:"FROM_NAME" envDefault:"WorkZen HRMS"`
		SMTP        struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST" envDefault:"smtp.gmail.com"`
			Port        int    `env:"PORT" envDefault:"587"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                  string `env:"HOST" envDefault:"localhost"`
		Port                  int    `env:"PORT" envDefault:"6379"`
		Password              string `env:"PASSWORD"`
		ConnectTimeout        int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationTimeout      int    `env:"OPERATION_TIMEOUT" envDefault:"5"`
		ReservationExpiration int    `env:"RESERVATION_EXPIRATION" envDefault:"60"`
	} `envPrefix:"REDIS_"`
	CORS struct {
		Origins []string `env:"ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	} `envPrefix:"CORS_"`
	RateLimit struct {
		GeneralRPM int `env:"GENERAL_RPM" envDefault:"100"`
		AuthRPM    int `env:"AUTH_RPM" envDefault:"10"`
	} `envPrefix:"RATE_LIMIT_"`
}

func LoadConfig() (*Config, error) {
	// .env 文件是可选的，不存在时直接使用环境变量
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
