package srvreg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/shop"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"github.com/rs/zerolog"
)

// Request represents an incoming HTTP request
type Request struct {
	Method string
	Path   string
	Body   string
	// Params holds the values of the ":name" segments of the matched pattern
	Params map[string]string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// HandlerFunc is a function that handles a request
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Pinger reports whether a backing store answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceRegistry manages all service handlers
type ServiceRegistry struct {
	handlers  map[string]map[string]HandlerFunc
	shop      *shop.Shop
	database  Pinger
	cache     Pinger
	logger    zerolog.Logger
	startTime time.Time
}

var defaultHeaders = map[string]string{
	"Content-Type": "application/json",
}

// NewServiceRegistry creates a new service registry
func NewServiceRegistry(s *shop.Shop, database, cache Pinger, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		handlers:  make(map[string]map[string]HandlerFunc),
		shop:      s,
		database:  database,
		cache:     cache,
		logger:    logger,
		startTime: time.Now(),
	}
}

// RegisterHandler registers a handler for a specific method and path
func (sr *ServiceRegistry) RegisterHandler(method, path string, handler HandlerFunc) {
	if sr.handlers[method] == nil {
		sr.handlers[method] = make(map[string]HandlerFunc)
	}
	sr.handlers[method][path] = handler
	sr.logger.Debug().Msgf("✓ Registered handler: %s %s", method, path)
}

// GetHandlerForPath finds the handler for a given method and path along
// with the path parameters. When several patterns match, the one with the
// most literal segments wins.
func (sr *ServiceRegistry) GetHandlerForPath(method, path string) (HandlerFunc, map[string]string, bool) {
	methodHandlers, exists := sr.handlers[method]
	if !exists {
		return nil, nil, false
	}

	// Try exact match first
	if handler, exists := methodHandlers[path]; exists {
		return handler, map[string]string{}, true
	}

	// Try pattern matching for paths with parameters
	var (
		best        HandlerFunc
		bestParams  map[string]string
		bestPattern string
		bestScore   = -1
	)
	for pattern, handler := range methodHandlers {
		params, literals, ok := matchPath(pattern, path)
		if !ok {
			continue
		}
		// ties fall back to the pattern text so the choice never depends on map order
		if literals > bestScore || (literals == bestScore && pattern < bestPattern) {
			best, bestParams, bestPattern, bestScore = handler, params, pattern, literals
		}
	}
	return best, bestParams, best != nil
}

// matchPath checks if a path matches a pattern with parameters.
// It supports patterns like "/cart/:buyer" matching "/cart/123"
func matchPath(pattern, path string) (map[string]string, int, bool) {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return nil, 0, false
	}

	params := map[string]string{}
	literals := 0
	for i := 0; i < len(patternParts); i++ {
		if name, ok := strings.CutPrefix(patternParts[i], ":"); ok {
			// This is a parameter, it matches any non-empty segment
			if pathParts[i] == "" {
				return nil, 0, false
			}
			params[name] = pathParts[i]
			continue
		}
		if patternParts[i] != pathParts[i] {
			return nil, 0, false
		}
		literals++
	}

	return params, literals, true
}

// RegisterDefaultServices sets up all default endpoints
func (sr *ServiceRegistry) RegisterDefaultServices() {
	sr.logger.Info().Msg("Registering shop services...")

	// Info endpoints
	sr.RegisterHandler("GET", "/info", sr.InfoHandler)

	// Session and account endpoints
	sr.RegisterHandler("POST", "/session/login", sr.LoginHandler)
	sr.RegisterHandler("POST", "/session/logout", sr.LogoutHandler)
	sr.RegisterHandler("GET", "/accounts/:role/:id/balance", sr.GetBalanceHandler)
	sr.RegisterHandler("POST", "/accounts/:role/:id/balance", sr.AdjustBalanceHandler)

	// Catalog endpoints
	sr.RegisterHandler("POST", "/products", sr.AddProductHandler)
	sr.RegisterHandler("POST", "/products/search", sr.SearchProductsHandler)
	sr.RegisterHandler("POST", "/products/:id/edit", sr.EditProductHandler)
	sr.RegisterHandler("POST", "/products/:id/remove", sr.RemoveProductHandler)
	sr.RegisterHandler("GET", "/sellers/:id/products", sr.SellerProductsHandler)

	// Cart endpoints
	sr.RegisterHandler("GET", "/cart/:buyer", sr.GetCartHandler)
	sr.RegisterHandler("POST", "/cart/:buyer/items", sr.AddToCartHandler)
	sr.RegisterHandler("POST", "/cart/:buyer/items/:product/remove", sr.RemoveFromCartHandler)
	sr.RegisterHandler("POST", "/cart/:buyer/clear", sr.ClearCartHandler)
	sr.RegisterHandler("POST", "/cart/:buyer/checkout", sr.CheckoutHandler)

	// Order endpoints
	sr.RegisterHandler("GET", "/orders/:role/:id", sr.OrdersHistoryHandler)
	sr.RegisterHandler("GET", "/orders/:role/:id/:order", sr.GetOrderHandler)
	sr.RegisterHandler("GET", "/carriers/:id/ongoing", sr.OngoingOrdersHandler)
	sr.RegisterHandler("POST", "/orders/:order/status", sr.SetStatusHandler)
	sr.RegisterHandler("POST", "/orders/:order/cancel", sr.CancelOrderHandler)

	sr.logger.Info().Msg("✓ All services registered")
}

// GenerateResponse executes the request and generates a response. Handler
// errors are rendered as JSON error bodies with the status of their code.
func (req *Request) GenerateResponse(ctx context.Context, services *ServiceRegistry) (*Response, error) {
	handler, params, found := services.GetHandlerForPath(req.Method, req.Path)

	if !found {
		return &Response{
			StatusCode: http.StatusNotFound,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"Service not found for %s %s","code":"%s"}`, req.Method, req.Path, shoperr.NotFound),
		}, nil
	}

	req.Params = params
	if req.Body != "" {
		services.logger.Debug().Str("method", req.Method).Str("path", req.Path).Msg(compactJSON(req.Body))
	}
	response, err := handler(ctx, req)
	if err != nil {
		return errorResponse(err), nil
	}
	return response, nil
}

// jsonResponse marshals v as the response body
func jsonResponse(statusCode int, v interface{}) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: statusCode,
		Headers:    defaultHeaders,
		Body:       string(body),
	}, nil
}

// errorResponse renders err as {"error": message, "code": code}
func errorResponse(err error) *Response {
	code := shoperr.CodeOf(err)
	body, _ := json.Marshal(map[string]string{
		"error": shoperr.MessageOf(err),
		"code":  string(code),
	})
	return &Response{
		StatusCode: shoperr.HTTPStatus(code),
		Headers:    defaultHeaders,
		Body:       string(body),
	}
}

// compactJSON removes whitespace from JSON
func compactJSON(body string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(body)); err != nil {
		return strings.TrimSpace(body)
	}
	return buf.String()
}
