package handler

import (
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/config"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/service"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	service    *service.Service
	translator ut.Translator
	limiter    *rateLimiter

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, svc *service.Service) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// 校验错误信息里使用 JSON 字段名
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		service:    svc,
		translator: trans,
		limiter:    newRateLimiter(cfg.RateLimit.GeneralRPM, cfg.RateLimit.AuthRPM),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(metrics.Instrument)
	h.Mux.Use(h.cors())
	h.Mux.Use(h.limiter.Handler)

	h.Mux.NotFound(h.routeNotFound)
	h.Mux.MethodNotAllowed(h.methodNotAllowed)

	h.Mux.Get("/health", h.Health)
	h.Mux.Handle("/metrics", metrics.Handler())

	h.Mux.Route("/api", func(r chi.Router) {
		// 认证相关
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Post("/refresh", h.Refresh)
			r.Post("/register", h.Register)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
			r.With(h.auth).Get("/me", h.GetMe)
		})

		// 以下 API 只有管理员可以调用
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.auth)
			r.Use(h.RequiredRole(domain.RoleAdmin))
			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.GetAllUsers)
				r.Route("/{userId}", func(r chi.Router) {
					r.Post("/send-credentials", h.SendCredentials)
					r.Put("/password", h.UpdateUserPassword)
				})
			})
		})
	})
}
