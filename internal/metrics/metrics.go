// Package metrics exposes game and HTTP observations to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/geoguess"
)

const namespace = "geoguess"

type Metrics struct {
	registry *prometheus.Registry

	gamesCreated   *prometheus.CounterVec
	gamesCompleted *prometheus.CounterVec
	roundScores    *prometheus.HistogramVec
	guessDistance  *prometheus.HistogramVec
	gameScores     *prometheus.HistogramVec
	guessRejected  *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

var _ game.Metrics = (*Metrics)(nil)

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gamesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_created_total",
			Help:      "Games created, by mode.",
		}, []string{"mode"}),
		gamesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_completed_total",
			Help:      "Games completed, by mode.",
		}, []string{"mode"}),
		roundScores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_score",
			Help:      "Points awarded per round.",
			Buckets:   []float64{0, 500, 1000, 2500, 4000, 4500, 5000},
		}, []string{"mode"}),
		guessDistance: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guess_distance_km",
			Help:      "Great-circle distance between guess and actual location.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"mode"}),
		gameScores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "game_total_score",
			Help:      "Final total score of completed games.",
			Buckets:   prometheus.LinearBuckets(0, 2500, 11),
		}, []string{"mode"}),
		guessRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guesses_rejected_total",
			Help:      "Guesses rejected, by reason.",
		}, []string{"reason"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.gamesCreated,
		m.gamesCompleted,
		m.roundScores,
		m.guessDistance,
		m.gameScores,
		m.guessRejected,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) GameCreated(mode geoguess.Mode) {
	m.gamesCreated.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) RoundScored(mode geoguess.Mode, score int, distanceKm float64) {
	m.roundScores.WithLabelValues(string(mode)).Observe(float64(score))
	m.guessDistance.WithLabelValues(string(mode)).Observe(distanceKm)
}

func (m *Metrics) GameCompleted(mode geoguess.Mode, totalScore int) {
	m.gamesCompleted.WithLabelValues(string(mode)).Inc()
	m.gameScores.WithLabelValues(string(mode)).Observe(float64(totalScore))
}

func (m *Metrics) GuessRejected(reason string) {
	m.guessRejected.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request latency labelled with the chi route pattern,
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
