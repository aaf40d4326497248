package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowResult struct {
	status int
	body   string
	err    error
}

func startSlowServer(t *testing.T, timeout time.Duration) (context.CancelFunc, <-chan error, <-chan slowResult, chan struct{}) {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Write([]byte("done"))
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- serve(ctx, &http.Server{Handler: mux}, ln, timeout)
	}()

	results := make(chan slowResult, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			results <- slowResult{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		results <- slowResult{status: resp.StatusCode, body: string(body), err: err}
	}()

	<-started
	return cancel, served, results, release
}

func TestServe(t *testing.T) {
	t.Run("WaitsForInFlightRequests", func(t *testing.T) {
		cancel, served, results, release := startSlowServer(t, 5*time.Second)
		cancel()

		select {
		case err := <-served:
			t.Fatalf("serve returned before the request finished: %v", err)
		case <-time.After(200 * time.Millisecond):
		}

		close(release)
		require.NoError(t, <-served)

		res := <-results
		require.NoError(t, res.err)
		assert.Equal(t, http.StatusOK, res.status)
		assert.Equal(t, "done", res.body)
	})

	t.Run("ShutdownTimeout", func(t *testing.T) {
		cancel, served, _, release := startSlowServer(t, 50*time.Millisecond)
		defer close(release)
		cancel()

		err := <-served
		assert.ErrorContains(t, err, "graceful shutdown failed")
	})
}

func TestRunReturnsStartupErrors(t *testing.T) {
	t.Run("UnknownEngine", func(t *testing.T) {
		t.Setenv("APP_LOG_LEVEL", "DISABLED")
		t.Setenv("ENGINE_KIND", "coreml")
		err := run(context.Background(), "")
		assert.ErrorContains(t, err, "failed to select engine")
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		t.Setenv("ENGINE_THREADS", "-1")
		err := run(context.Background(), "")
		assert.ErrorContains(t, err, "failed to load config")
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		t.Setenv("APP_LOG_LEVEL", "DISABLED")
		t.Setenv("MODEL_DIR", t.TempDir())
		t.Setenv("MODEL_METADATA", "absent.json")
		err := run(context.Background(), "")
		assert.ErrorContains(t, err, "failed to load model metadata")
	})
}
