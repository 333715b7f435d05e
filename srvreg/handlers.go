package srvreg

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/repository"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shop"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
)

// decodeBody unmarshals the JSON body into v; an empty body leaves v as is
func decodeBody(req *Request, v interface{}) error {
	if req.Body == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(req.Body), v); err != nil {
		return shoperr.New(shoperr.InvalidArgument, "Invalid request body", err.Error())
	}
	return nil
}

func pathID(req *Request, name string) (int64, error) {
	id, err := strconv.ParseInt(req.Params[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, shoperr.Newf(shoperr.InvalidArgument, "Invalid "+name, "%q is not an id", req.Params[name])
	}
	return id, nil
}

func parseRole(raw string) (models.Role, error) {
	role, err := models.ParseRole(raw)
	if err != nil {
		return "", shoperr.New(shoperr.InvalidArgument, "Invalid role", err.Error())
	}
	return role, nil
}

func pathRole(req *Request) (models.Role, error) {
	return parseRole(req.Params["role"])
}

// InfoHandler reports service health
func (sr *ServiceRegistry) InfoHandler(ctx context.Context, req *Request) (*Response, error) {
	status := "active"
	database, cache := "up", "up"
	if err := sr.database.Ping(ctx); err != nil {
		database, status = "down", "degraded"
	}
	if err := sr.cache.Ping(ctx); err != nil {
		cache, status = "down", "degraded"
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"type":     "E-Commerce Backend",
		"status":   status,
		"database": database,
		"cache":    cache,
		"uptime":   time.Since(sr.startTime).Round(time.Second).String(),
	})
}

// LoginHandler opens a session, registering the account on first login
func (sr *ServiceRegistry) LoginHandler(ctx context.Context, req *Request) (*Response, error) {
	var body struct {
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}
	role, err := parseRole(body.Role)
	if err != nil {
		return nil, err
	}

	id, err := sr.shop.Accounts.Login(ctx, body.DisplayName, role)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message":      "Logged in",
		"id":           id,
		"display_name": body.DisplayName,
		"role":         role,
	})
}

// LogoutHandler closes a session
func (sr *ServiceRegistry) LogoutHandler(ctx context.Context, req *Request) (*Response, error) {
	var body struct {
		ID   int64  `json:"id"`
		Role string `json:"role"`
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}
	role, err := parseRole(body.Role)
	if err != nil {
		return nil, err
	}

	if err := sr.shop.Accounts.Logout(ctx, body.ID, role); err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"message": "Logged out", "id": body.ID})
}

// GetBalanceHandler returns an account's balance
func (sr *ServiceRegistry) GetBalanceHandler(ctx context.Context, req *Request) (*Response, error) {
	role, err := pathRole(req)
	if err != nil {
		return nil, err
	}
	id, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}

	balance, err := sr.shop.Accounts.GetBalance(ctx, id, role)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"id": id, "role": role, "balance": balance})
}

// AdjustBalanceHandler deposits or withdraws
func (sr *ServiceRegistry) AdjustBalanceHandler(ctx context.Context, req *Request) (*Response, error) {
	role, err := pathRole(req)
	if err != nil {
		return nil, err
	}
	id, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}
	var body struct {
		Delta int64 `json:"delta"`
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}

	balance, err := sr.shop.Accounts.AdjustBalance(ctx, id, role, body.Delta)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"id": id, "role": role, "balance": balance})
}

// AddProductHandler lists a new product
func (sr *ServiceRegistry) AddProductHandler(ctx context.Context, req *Request) (*Response, error) {
	var body struct {
		SellerID int64 `json:"seller_id"`
		repository.ProductInput
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}

	product, err := sr.shop.Catalog.AddProduct(ctx, body.SellerID, body.ProductInput)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusCreated, product)
}

// SearchProductsHandler runs a buyer-facing search
func (sr *ServiceRegistry) SearchProductsHandler(ctx context.Context, req *Request) (*Response, error) {
	var query repository.ProductQuery
	if err := decodeBody(req, &query); err != nil {
		return nil, err
	}

	products, err := sr.shop.Catalog.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"products": products, "count": len(products)})
}

// EditProductHandler changes the fields present in the body
func (sr *ServiceRegistry) EditProductHandler(ctx context.Context, req *Request) (*Response, error) {
	productID, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}
	var body struct {
		SellerID int64 `json:"seller_id"`
		repository.ProductPatch
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}

	product, err := sr.shop.Catalog.EditProduct(ctx, body.SellerID, productID, body.ProductPatch)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, product)
}

// RemoveProductHandler delists a product
func (sr *ServiceRegistry) RemoveProductHandler(ctx context.Context, req *Request) (*Response, error) {
	productID, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}
	var body struct {
		SellerID int64 `json:"seller_id"`
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}

	removed, err := sr.shop.Catalog.RemoveProduct(ctx, body.SellerID, productID)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"message": "Product removed", "product_id": removed})
}

// SellerProductsHandler lists every listing of a seller, removed ones included
func (sr *ServiceRegistry) SellerProductsHandler(ctx context.Context, req *Request) (*Response, error) {
	sellerID, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}

	products, err := sr.shop.Catalog.ListSellerProducts(ctx, sellerID, true)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"products": products, "count": len(products)})
}

// GetCartHandler returns the buyer's cart lines and totals
func (sr *ServiceRegistry) GetCartHandler(ctx context.Context, req *Request) (*Response, error) {
	buyerID, err := pathID(req, "buyer")
	if err != nil {
		return nil, err
	}

	cart, err := sr.shop.Cart.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, cartView(buyerID, cart))
}

// AddToCartHandler adds units of a product; quantity defaults to 1
func (sr *ServiceRegistry) AddToCartHandler(ctx context.Context, req *Request) (*Response, error) {
	buyerID, err := pathID(req, "buyer")
	if err != nil {
		return nil, err
	}
	var body struct {
		ProductID int64  `json:"product_id"`
		Quantity  *int64 `json:"quantity"`
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}
	quantity := int64(1)
	if body.Quantity != nil {
		quantity = *body.Quantity
	}

	entry, err := sr.shop.Cart.AddToCart(ctx, buyerID, body.ProductID, quantity)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, entry)
}

// RemoveFromCartHandler takes units out; no quantity removes the line
func (sr *ServiceRegistry) RemoveFromCartHandler(ctx context.Context, req *Request) (*Response, error) {
	buyerID, err := pathID(req, "buyer")
	if err != nil {
		return nil, err
	}
	productID, err := pathID(req, "product")
	if err != nil {
		return nil, err
	}
	var body struct {
		Quantity int64 `json:"quantity"`
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}

	if err := sr.shop.Cart.RemoveFromCart(ctx, buyerID, productID, body.Quantity); err != nil {
		return nil, err
	}
	cart, err := sr.shop.Cart.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, cartView(buyerID, cart))
}

// ClearCartHandler empties the cart
func (sr *ServiceRegistry) ClearCartHandler(ctx context.Context, req *Request) (*Response, error) {
	buyerID, err := pathID(req, "buyer")
	if err != nil {
		return nil, err
	}
	if err := sr.shop.Cart.ClearCart(ctx, buyerID); err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"message": "Cart cleared", "buyer_id": buyerID})
}

// CheckoutHandler places an order from the cart
func (sr *ServiceRegistry) CheckoutHandler(ctx context.Context, req *Request) (*Response, error) {
	buyerID, err := pathID(req, "buyer")
	if err != nil {
		return nil, err
	}
	var body struct {
		Address string `json:"address"`
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}

	orderID, err := sr.shop.Checkout.PlaceOrder(ctx, buyerID, body.Address)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusCreated, map[string]interface{}{"message": "Order placed", "order_id": orderID})
}

// OrdersHistoryHandler lists the orders visible to the actor
func (sr *ServiceRegistry) OrdersHistoryHandler(ctx context.Context, req *Request) (*Response, error) {
	role, err := pathRole(req)
	if err != nil {
		return nil, err
	}
	id, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}

	orders, err := sr.shop.Orders.GetOrdersHistory(ctx, id, role)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"orders": orders, "count": len(orders)})
}

// GetOrderHandler returns one order with its items
func (sr *ServiceRegistry) GetOrderHandler(ctx context.Context, req *Request) (*Response, error) {
	role, err := pathRole(req)
	if err != nil {
		return nil, err
	}
	id, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}
	orderID, err := pathID(req, "order")
	if err != nil {
		return nil, err
	}

	order, err := sr.shop.Orders.GetOrder(ctx, id, role, orderID)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, order)
}

// OngoingOrdersHandler lists a carrier's orders still in transit
func (sr *ServiceRegistry) OngoingOrdersHandler(ctx context.Context, req *Request) (*Response, error) {
	carrierID, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}

	orders, err := sr.shop.Orders.GetOngoingOrders(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"orders": orders, "count": len(orders)})
}

// SetStatusHandler moves an order on behalf of a buyer or carrier
func (sr *ServiceRegistry) SetStatusHandler(ctx context.Context, req *Request) (*Response, error) {
	orderID, err := pathID(req, "order")
	if err != nil {
		return nil, err
	}
	var body struct {
		ActorID int64  `json:"actor_id"`
		Role    string `json:"role"`
		Status  string `json:"status"`
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}
	role, err := parseRole(body.Role)
	if err != nil {
		return nil, err
	}
	status, err := models.ParseOrderStatus(body.Status)
	if err != nil {
		return nil, shoperr.New(shoperr.InvalidArgument, "Invalid status", err.Error())
	}

	if err := sr.shop.Orders.SetStatus(ctx, body.ActorID, role, orderID, status); err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"order_id": orderID, "status": status})
}

// CancelOrderHandler cancels a buyer's open order
func (sr *ServiceRegistry) CancelOrderHandler(ctx context.Context, req *Request) (*Response, error) {
	orderID, err := pathID(req, "order")
	if err != nil {
		return nil, err
	}
	var body struct {
		BuyerID int64 `json:"buyer_id"`
	}
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}

	if err := sr.shop.Orders.CancelOrder(ctx, body.BuyerID, orderID); err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"order_id": orderID, "status": models.StatusCancelled})
}

// CartView is the JSON shape of a cart
type CartView struct {
	BuyerID int64        `json:"buyer_id"`
	Lines   []shop.Entry `json:"lines"`
	Total   int64        `json:"total"`
}

func cartView(buyerID int64, cart shop.Cart) CartView {
	return CartView{BuyerID: buyerID, Lines: cart.Lines(), Total: cart.Total}
}
