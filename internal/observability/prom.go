package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	// local cache backend
	StoreOpDuration  *prometheus.HistogramVec
	StoreErrorsTotal *prometheus.CounterVec

	// remote sync
	SyncFetchTotal     *prometheus.CounterVec
	SyncPushTotal      *prometheus.CounterVec
	SyncPushDuration   *prometheus.HistogramVec
	SyncPushesInFlight prometheus.Gauge
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "teamflow",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "teamflow",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "teamflow",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		StoreOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "teamflow",
				Subsystem: "localcache",
				Name:      "op_duration_seconds",
				Help:      "Local cache operation latency by op and status.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"op", "status"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "teamflow",
				Subsystem: "localcache",
				Name:      "errors_total",
				Help:      "Local cache errors by op and class.",
			},
			[]string{"op", "class"},
		),
		SyncFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "teamflow",
				Subsystem: "sync",
				Name:      "fetch_total",
				Help:      "Collection fetches by collection and source.",
			},
			[]string{"collection", "source"}, // source=remote|cache|fallback
		),
		SyncPushTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "teamflow",
				Subsystem: "sync",
				Name:      "push_total",
				Help:      "Fire-and-forget collection pushes by collection and result.",
			},
			[]string{"collection", "result"}, // result=sent|failed
		),
		SyncPushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "teamflow",
				Subsystem: "sync",
				Name:      "push_duration_seconds",
				Help:      "Time spent dispatching a collection push.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"collection", "result"},
		),
		SyncPushesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "teamflow",
				Subsystem: "sync",
				Name:      "pushes_in_flight",
				Help:      "Pushes dispatched and not yet finished.",
			},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.StoreOpDuration, p.StoreErrorsTotal,
		p.SyncFetchTotal, p.SyncPushTotal, p.SyncPushDuration, p.SyncPushesInFlight,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}
