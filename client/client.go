package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/repository"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shop"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
)

// Client talks to the shop's HTTP API
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Info is the answer of the info endpoint
type Info struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Uptime   string `json:"uptime"`
}

// Cart is a buyer's cart as served by the API
type Cart struct {
	BuyerID int64        `json:"buyer_id"`
	Lines   []shop.Entry `json:"lines"`
	Total   int64        `json:"total"`
}

// NewClient creates a new API client
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends in as JSON and decodes the answer into out. Error answers come
// back as *shoperr.Error carrying the server's code.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shoperr.New(shoperr.ConnectionFailure, "Failed to reach the shop", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("shop returned error status %d: %s", resp.StatusCode, string(body))
		}
		return shoperr.Newf(shoperr.Code(apiErr.Code), apiErr.Error, "HTTP %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// HealthCheck checks that the shop and its stores are up
func (c *Client) HealthCheck(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}
	if info.Status != "active" {
		return &info, fmt.Errorf("shop is %s (database %s, cache %s)", info.Status, info.Database, info.Cache)
	}
	return &info, nil
}

func (c *Client) Login(ctx context.Context, name string, role models.Role) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	in := map[string]interface{}{"display_name": name, "role": role}
	if err := c.do(ctx, http.MethodPost, "/session/login", in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) Logout(ctx context.Context, id int64, role models.Role) error {
	in := map[string]interface{}{"id": id, "role": role}
	return c.do(ctx, http.MethodPost, "/session/logout", in, nil)
}

type balanceView struct {
	Balance int64 `json:"balance"`
}

func (c *Client) GetBalance(ctx context.Context, id int64, role models.Role) (int64, error) {
	var out balanceView
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/accounts/%s/%d/balance", role, id), nil, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (c *Client) AdjustBalance(ctx context.Context, id int64, role models.Role, delta int64) (int64, error) {
	var out balanceView
	in := map[string]interface{}{"delta": delta}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/accounts/%s/%d/balance", role, id), in, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (c *Client) AddProduct(ctx context.Context, sellerID int64, input repository.ProductInput) (*models.Product, error) {
	in := struct {
		SellerID int64 `json:"seller_id"`
		repository.ProductInput
	}{sellerID, input}
	var product models.Product
	if err := c.do(ctx, http.MethodPost, "/products", in, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) EditProduct(ctx context.Context, sellerID, productID int64, patch repository.ProductPatch) (*models.Product, error) {
	in := struct {
		SellerID int64 `json:"seller_id"`
		repository.ProductPatch
	}{sellerID, patch}
	var product models.Product
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/products/%d/edit", productID), in, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) RemoveProduct(ctx context.Context, sellerID, productID int64) error {
	in := map[string]interface{}{"seller_id": sellerID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/products/%d/remove", productID), in, nil)
}

type productList struct {
	Products []models.Product `json:"products"`
}

func (c *Client) SearchProducts(ctx context.Context, q repository.ProductQuery) ([]models.Product, error) {
	var out productList
	if err := c.do(ctx, http.MethodPost, "/products/search", q, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *Client) SellerProducts(ctx context.Context, sellerID int64) ([]models.Product, error) {
	var out productList
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sellers/%d/products", sellerID), nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *Client) GetCart(ctx context.Context, buyerID int64) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/cart/%d", buyerID), nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) AddToCart(ctx context.Context, buyerID, productID, quantity int64) (*shop.Entry, error) {
	var entry shop.Entry
	in := map[string]interface{}{"product_id": productID, "quantity": quantity}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/cart/%d/items", buyerID), in, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// RemoveFromCart takes quantity units out of the cart; 0 removes the line
func (c *Client) RemoveFromCart(ctx context.Context, buyerID, productID, quantity int64) (*Cart, error) {
	var cart Cart
	in := map[string]interface{}{"quantity": quantity}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/cart/%d/items/%d/remove", buyerID, productID), in, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) ClearCart(ctx context.Context, buyerID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/cart/%d/clear", buyerID), nil, nil)
}

// Checkout places an order from the buyer's cart and returns its id
func (c *Client) Checkout(ctx context.Context, buyerID int64, address string) (int64, error) {
	var out struct {
		OrderID int64 `json:"order_id"`
	}
	in := map[string]interface{}{"address": address}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/cart/%d/checkout", buyerID), in, &out); err != nil {
		return 0, err
	}
	return out.OrderID, nil
}

type orderList struct {
	Orders []models.Order `json:"orders"`
}

func (c *Client) OrdersHistory(ctx context.Context, id int64, role models.Role) ([]models.Order, error) {
	var out orderList
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%s/%d", role, id), nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64, role models.Role, orderID int64) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%s/%d/%d", role, id, orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) OngoingOrders(ctx context.Context, carrierID int64) ([]models.Order, error) {
	var out orderList
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/carriers/%d/ongoing", carrierID), nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) SetStatus(ctx context.Context, actorID int64, role models.Role, orderID int64, status models.OrderStatus) error {
	in := map[string]interface{}{"actor_id": actorID, "role": role, "status": status}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/status", orderID), in, nil)
}

func (c *Client) CancelOrder(ctx context.Context, buyerID, orderID int64) error {
	in := map[string]interface{}{"buyer_id": buyerID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", orderID), in, nil)
}
