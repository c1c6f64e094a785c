package logger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/payroll-engine/logger"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *logger.Config
		wantErr bool
	}{
		{"default", logger.DefaultConfig(), false},
		{"nil config", nil, false},
		{"json stderr", &logger.Config{Level: "debug", Format: "json", Output: "stderr"}, false},
		{"file", &logger.Config{Level: "warn", Format: "json", Output: filepath.Join(t.TempDir(), "app.log")}, false},
		{"bad level", &logger.Config{Level: "loud"}, true},
		{"unwritable file", &logger.Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "app.log")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := logger.New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := logger.ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	lvl, err = logger.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, logger.FromContext(context.Background()), "falls back to a no-op logger")

	core, logs := observer.New(zapcore.InfoLevel)
	ctx, _ := logger.WithRequestID(context.Background(), zap.New(core), "req-1")
	logger.FromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
	assert.Equal(t, "req-1", logger.GetRequestID(ctx))
}

func TestMiddleware_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(zap.New(core)))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debug("inside handler")
		w.Write([]byte("ok"))
	})
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	requests := logs.FilterMessage("http request").All()
	require.Len(t, requests, 3)
	assert.Equal(t, zapcore.InfoLevel, requests[0].Level)
	assert.Equal(t, zapcore.WarnLevel, requests[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, requests[2].Level)
	assert.EqualValues(t, 404, requests[1].ContextMap()["status"])

	inside := logs.FilterMessage("inside handler").All()
	require.Len(t, inside, 1)
	assert.NotEmpty(t, inside[0].ContextMap()["request_id"])
}
