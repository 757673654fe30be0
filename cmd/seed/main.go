package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/config"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/identifier"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/repository"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var company string
	var n int

	flag.StringVar(&company, "company", "", "要写入演示员工的公司名称（必须已经注册）")
	flag.IntVar(&n, "n", 5, "要插入的员工数量")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if company == "" {
		logger.Error("未指定公司名称")
		os.Exit(1)
	}

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	if err := repository.RunMigrations(ctx, dbpool); err != nil {
		logger.Error("数据库迁移失败", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	// 与 api 服务共用同一套工号占用记录
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	reserver := identifier.NewRedisReserver(
		rdb,
		time.Duration(cfg.Redis.ReservationExpiration)*time.Second,
		time.Duration(cfg.Redis.OperationTimeout)*time.Second,
	)

	seeder := seed.NewSeeder(repo, identifier.NewGenerator(repo, reserver), cfg.Seed.EmailDomain, logger)
	created, err := seeder.SeedEmployees(context.Background(), company, n, cfg.Seed.User.Password)
	if err != nil {
		logger.Error("无法插入员工", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("插入员工成功", slog.Int("count", created))
}
