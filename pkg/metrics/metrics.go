package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stratahq/strata/internal/common/config"
)

type Metrics struct {
	registry   *prometheus.Registry
	namespace  string
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec

	unitsGenerated     *prometheus.CounterVec
	capacityRejections *prometheus.CounterVec
	topologyConflicts  *prometheus.CounterVec
	visitorTransitions *prometheus.CounterVec
	tokenValidations   *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	// Register basic HTTP metrics
	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	unitsGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "units_generated_total"}, []string{"tenant"})
	capacityRejections := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "capacity_rejections_total"}, []string{"tenant"})
	topologyConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "topology_conflicts_total"}, []string{"tenant"})
	r.MustRegister(unitsGenerated, capacityRejections, topologyConflicts)

	visitorTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "visitor_transitions_total"}, []string{"to_state"})
	tokenValidations := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "token_validations_total"}, []string{"result"})
	r.MustRegister(visitorTransitions, tokenValidations)

	return &Metrics{
		registry:           r,
		namespace:          ns,
		httpReqCnt:         httpReqCnt,
		httpDur:            httpDur,
		httpInfl:           httpInfl,
		unitsGenerated:     unitsGenerated,
		capacityRejections: capacityRejections,
		topologyConflicts:  topologyConflicts,
		visitorTransitions: visitorTransitions,
		tokenValidations:   tokenValidations,
	}
}

// UnitsGenerated records newly created units for a tenant
func (m *Metrics) UnitsGenerated(tenant string, n int) {
	m.unitsGenerated.WithLabelValues(tenant).Add(float64(n))
}

// CapacityRejected records a write refused by the licensed-unit guard
func (m *Metrics) CapacityRejected(tenant string) {
	m.capacityRejections.WithLabelValues(tenant).Inc()
}

// TopologyConflict records a topology write that lost the version race
func (m *Metrics) TopologyConflict(tenant string) {
	m.topologyConflicts.WithLabelValues(tenant).Inc()
}

// VisitorTransition records a visitor request entering a state
func (m *Metrics) VisitorTransition(toState string) {
	m.visitorTransitions.WithLabelValues(toState).Inc()
}

// TokenValidated records a QR validation outcome (valid, expired, invalid)
func (m *Metrics) TokenValidated(result string) {
	m.tokenValidations.WithLabelValues(result).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatus(code int) string { return strconv.Itoa(code) }
