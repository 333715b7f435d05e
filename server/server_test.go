package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/srvreg"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, timeout time.Duration) (*WebServer, *srvreg.ServiceRegistry) {
	t.Helper()
	sr := srvreg.NewServiceRegistry(nil, nil, nil, zerolog.Nop())
	return NewWebServer("0", sr, timeout, zerolog.Nop()), sr
}

func TestRequestsReachTheRegistry(t *testing.T) {
	ws, sr := newTestServer(t, time.Second)
	var got *srvreg.Request
	sr.RegisterHandler("POST", "/cart/:buyer/items", func(ctx context.Context, req *srvreg.Request) (*srvreg.Response, error) {
		got = req
		return &srvreg.Response{
			StatusCode: http.StatusCreated,
			Headers:    map[string]string{"Content-Type": "application/json", "X-Shop": "1"},
			Body:       `{"ok":true}`,
		}, nil
	})

	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/cart/4/items", strings.NewReader(`{"product_id":1}`)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Shop"))
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	require.NotNil(t, got)
	assert.Equal(t, "4", got.Params["buyer"])
	assert.Equal(t, `{"product_id":1}`, got.Body)
}

func TestUnknownRouteIs404(t *testing.T) {
	ws, _ := newTestServer(t, time.Second)
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/nowhere", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestHandlersSeeTheRequestDeadline(t *testing.T) {
	ws, sr := newTestServer(t, 20*time.Millisecond)
	sr.RegisterHandler("GET", "/slow", func(ctx context.Context, req *srvreg.Request) (*srvreg.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/slow", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "TIMEOUT", body["code"])
}

func TestPanicsAreRecovered(t *testing.T) {
	ws, sr := newTestServer(t, time.Second)
	sr.RegisterHandler("GET", "/boom", func(ctx context.Context, req *srvreg.Request) (*srvreg.Response, error) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStartReportsBindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	_, port, err := net.SplitHostPort(busy.Addr().String())
	require.NoError(t, err)

	sr := srvreg.NewServiceRegistry(nil, nil, nil, zerolog.Nop())
	ws := NewWebServer(port, sr, time.Second, zerolog.Nop())
	assert.Error(t, ws.Start())
}

func TestStartServesUntilShutdown(t *testing.T) {
	ws, sr := newTestServer(t, time.Second)
	sr.RegisterHandler("GET", "/ping", func(ctx context.Context, req *srvreg.Request) (*srvreg.Response, error) {
		return &srvreg.Response{StatusCode: http.StatusOK, Body: `{"pong":true}`}, nil
	})
	require.NoError(t, ws.Start())

	_, port, err := net.SplitHostPort(ws.Addr())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ws.Shutdown(ctx))
}
