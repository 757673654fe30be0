package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "workzen_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workzen_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// AuthEvents 按操作和结果统计认证相关事件，例如 login/success、refresh/rejected
	AuthEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workzen_auth_events_total",
			Help: "Authentication and credential lifecycle events by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	// MailDispatchFailures 统计被吞掉的邮件投递失败
	MailDispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workzen_mail_dispatch_failures_total",
			Help: "Email dispatch failures that were logged and not surfaced to the caller.",
		},
		[]string{"type"},
	)
)

const unmatchedRoute = "unmatched"

func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestDuration, AuthEvents, MailDispatchFailures)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument 使用 chi 的路由模板作为标签，避免 userId 之类的路径参数撑爆基数
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		httpRequestDuration.WithLabelValues(r.Method, routeLabel(r), strconv.Itoa(sw.code)).Observe(time.Since(start).Seconds())
	})
}

// routeLabel 没有匹配到任何路由的请求统一归到 unmatched，扫描随机路径不会产生新的标签值
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatchedRoute
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
