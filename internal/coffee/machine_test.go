package coffee

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMachine_Order(t *testing.T) {
	var got order
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m, err := NewMachine(Options{URL: srv.URL, Drink: "flat white"}, srv.Client(), nil)
	require.NoError(t, err)

	require.NoError(t, m.Order(context.Background()))
	assert.Equal(t, "flat white", got.Drink)
}

func TestMachine_OrderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of beans", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m, err := NewMachine(Options{URL: srv.URL}, srv.Client(), nil)
	require.NoError(t, err)

	err = m.Order(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestMachine_PerformLogsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	m, err := NewMachine(Options{URL: srv.URL}, srv.Client(), zap.New(core))
	require.NoError(t, err)

	m.Perform(context.Background())
	m.Wait()

	assert.Equal(t, 1, logs.FilterMessage("Coffee order failed").Len())
}

func TestMachine_PerformSurvivesCallerCancellation(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	m, err := NewMachine(Options{URL: srv.URL}, srv.Client(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	m.Perform(ctx)
	cancel()
	m.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestMachine_RateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	m, err := NewMachine(Options{
		URL:      srv.URL,
		Burst:    2,
		Interval: time.Hour,
		Timeout:  50 * time.Millisecond,
	}, srv.Client(), nil)
	require.NoError(t, err)

	require.NoError(t, m.Order(context.Background()))
	require.NoError(t, m.Order(context.Background()))

	err = m.Order(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order slot")
	assert.Equal(t, int32(2), hits.Load())
}

func TestMachine_DryRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m, err := NewMachine(Options{DryRun: true}, nil, zap.New(core))
	require.NoError(t, err)

	m.Perform(context.Background())
	m.Wait()

	assert.Equal(t, 1, logs.FilterMessageSnippet("Dry run").Len())
}

func TestNewMachine_RequiresURL(t *testing.T) {
	_, err := NewMachine(Options{}, nil, nil)
	assert.Error(t, err)
}
