package metric

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/server"
)

func TestHandler(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()

	var m server.Metrics
	require.NoError(r.RegisterServer(&m))
	m.ConnAcceptCount.Add(7)

	h := Handler(r)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPath, nil))
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), "rhal_server_connections_accepted_total 7")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("OK", rec.Body.String())
}

func TestServer_ListenAndServe(t *testing.T) {
	require := require.New(t)

	srv := NewServer("127.0.0.1:0", NewRegistry(), logger.NewPermissiveMockLogger())
	require.Nil(srv.Addr())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()
	require.Eventually(func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)

	rsp, err := http.Get("http://" + srv.Addr().String() + DefaultPath)
	require.NoError(err)
	body, err := io.ReadAll(rsp.Body)
	require.NoError(err)
	require.NoError(rsp.Body.Close())
	require.Equal(http.StatusOK, rsp.StatusCode)
	require.Contains(string(body), "go_goroutines")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(srv.Shutdown(ctx))

	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}
