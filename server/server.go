package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/srvreg"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// WebServer handles HTTP requests for the shop
type WebServer struct {
	httpAddr        string
	echo            *echo.Echo
	serviceRegistry *srvreg.ServiceRegistry
	requestTimeout  time.Duration
	logger          zerolog.Logger
}

// NewWebServer creates a new web server in front of the service registry
func NewWebServer(httpPort string, serviceRegistry *srvreg.ServiceRegistry, requestTimeout time.Duration, logger zerolog.Logger) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ws := &WebServer{
		httpAddr:        ":" + httpPort,
		echo:            e,
		serviceRegistry: serviceRegistry,
		requestTimeout:  requestTimeout,
		logger:          logger,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ws.logger.Info().
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	// Every route is resolved by the service registry
	e.Any("/*", ws.handleService)

	return ws
}

// Handler exposes the router, e.g. for httptest
func (ws *WebServer) Handler() http.Handler {
	return ws.echo
}

// Start binds the address and serves in the background. A bind failure is
// returned to the caller.
func (ws *WebServer) Start() error {
	ws.logger.Info().Msg("🚀 Starting E-Commerce Web Server")
	ws.logger.Info().Msgf("   Address: %s", ws.httpAddr)

	listener, err := net.Listen("tcp", ws.httpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ws.httpAddr, err)
	}
	ws.echo.Listener = listener

	go func() {
		if err := ws.echo.Start(ws.httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ws.logger.Error().Err(err).Msg("❌ Web server error")
		}
	}()

	ws.logger.Info().Msg("✓ Web server started successfully")
	return nil
}

// Addr is the bound address once Start succeeded
func (ws *WebServer) Addr() string {
	if ws.echo.Listener == nil {
		return ws.httpAddr
	}
	return ws.echo.Listener.Addr().String()
}

// Shutdown gracefully shuts down the web server
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.logger.Info().Msg("Shutting down web server...")
	return ws.echo.Shutdown(ctx)
}

// handleService hands the request to the service registry, bounded by the
// request timeout
func (ws *WebServer) handleService(c echo.Context) error {
	bodyBytes, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return jsonError(c, "Failed to read request body", http.StatusBadRequest)
	}
	defer c.Request().Body.Close()

	ctx, cancel := context.WithTimeout(c.Request().Context(), ws.requestTimeout)
	defer cancel()

	req := &srvreg.Request{
		Method: c.Request().Method,
		Path:   c.Request().URL.Path,
		Body:   string(bodyBytes),
	}

	response, err := req.GenerateResponse(ctx, ws.serviceRegistry)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Error generating response")
		return jsonError(c, "Internal server error", http.StatusInternalServerError)
	}

	return writeResponse(c, response)
}

// writeResponse writes a Response through the echo context
func writeResponse(c echo.Context, resp *srvreg.Response) error {
	contentType := echo.MIMEApplicationJSON
	for key, value := range resp.Headers {
		if key == echo.HeaderContentType {
			contentType = value
			continue
		}
		c.Response().Header().Set(key, value)
	}
	return c.Blob(resp.StatusCode, contentType, []byte(resp.Body))
}

// jsonError writes a JSON error response
func jsonError(c echo.Context, message string, statusCode int) error {
	return c.JSON(statusCode, map[string]string{
		"error": message,
	})
}
