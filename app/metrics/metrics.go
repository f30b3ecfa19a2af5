package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "checkout"

const (
	ReconcileUnchanged = "unchanged"
	ReconcileUpdated   = "updated"
	ReconcileRejected  = "rejected"
	ReconcileError     = "error"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CheckoutMetrics groups the collectors exported by the service. A nil
// *CheckoutMetrics is valid and records nothing.
type CheckoutMetrics struct {
	Sessions        *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
	CartClears      *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Checkout sessions requested, by outcome.",
		}, []string{"outcome"}),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Status reconciliations, by result.",
		}, []string{"result"}),
		CartClears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_clears_total",
			Help:      "Cart clears triggered by a first paid transition, by outcome.",
		}, []string{"outcome"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Payment gateway call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status.",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(m.Sessions, m.Reconciliations, m.CartClears, m.GatewayLatency, m.HTTPRequests)
	return m
}

func (m *CheckoutMetrics) SessionCreated(ok bool) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome(ok)).Inc()
}

func (m *CheckoutMetrics) Reconciled(result string) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(result).Inc()
}

func (m *CheckoutMetrics) CartCleared(ok bool) {
	if m == nil {
		return
	}
	m.CartClears.WithLabelValues(outcome(ok)).Inc()
}

func (m *CheckoutMetrics) ObserveGateway(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.GatewayLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// EchoMiddleware counts requests by matched route.
func (m *CheckoutMetrics) EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if m == nil {
				return err
			}
			code := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			m.HTTPRequests.WithLabelValues(c.Path(), strconv.Itoa(code)).Inc()
			return err
		}
	}
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
