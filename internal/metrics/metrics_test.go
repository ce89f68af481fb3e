package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/geoguess/internal/geoguess"
)

func TestGameCounters(t *testing.T) {
	m := New()

	m.GameCreated(geoguess.ModeClassic)
	m.GameCreated(geoguess.ModeClassic)
	m.GameCreated(geoguess.ModeTimed)
	m.GameCompleted(geoguess.ModeClassic, 21000)
	m.RoundScored(geoguess.ModeClassic, 4800, 12.5)
	m.GuessRejected("already_guessed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gamesCreated.WithLabelValues("classic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gamesCreated.WithLabelValues("timed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gamesCompleted.WithLabelValues("classic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guessRejected.WithLabelValues("already_guessed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.roundScores))
	assert.Equal(t, 1, testutil.CollectAndCount(m.gameScores))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/games/{gameID}/round", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/"+id+"/round", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `route="/api/games/{gameID}/round"`), body)
	assert.Contains(t, body, "go_goroutines")
}
