// Package storefront is a Go client of the storefront API. It drives the
// checkout flow from a shopper's local cart.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/localstore"
)

var ErrAddressNotFound = errors.New("shipping address not found")

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	cart       *localstore.Cart
}

// NewClient returns a client whose checkout operates on cart.
func NewClient(baseURL string, httpClient *http.Client, cart *localstore.Cart) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		cart:       cart,
	}
}

// WithToken sets the bearer token sent on every request.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login stores the returned bearer token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.User, error) {
	var resp struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return resp.User, nil
}

func (c *Client) Addresses(ctx context.Context) ([]domain.Address, error) {
	var resp struct {
		Addresses []domain.Address `json:"addresses"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/addresses", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

func (c *Client) checkAddress(ctx context.Context, addressID string) error {
	list, err := c.Addresses(ctx)
	if err != nil {
		return err
	}
	for _, a := range list {
		if a.ID == addressID {
			return nil
		}
	}
	return ErrAddressNotFound
}

// SyncCart replaces the server cart with the local one.
func (c *Client) SyncCart(ctx context.Context) (*domain.Cart, error) {
	var resp struct {
		Cart *domain.Cart `json:"cart"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/cart", map[string]any{"items": c.cart.Lines()}, &resp); err != nil {
		return nil, fmt.Errorf("sync cart: %w", err)
	}
	return resp.Cart, nil
}

func (c *Client) prepare(ctx context.Context, addressID string) error {
	if err := c.checkAddress(ctx, addressID); err != nil {
		return err
	}
	if c.cart.TotalItems() == 0 {
		return domain.ErrCartEmpty
	}
	_, err := c.SyncCart(ctx)
	return err
}

// Checkout syncs the cart, opens a hosted payment session and returns its
// URL. The local cart is cleared only once the URL is known. If clearing
// fails the URL is still returned with the error.
func (c *Client) Checkout(ctx context.Context, addressID string, currency domain.Currency) (string, error) {
	if err := c.prepare(ctx, addressID); err != nil {
		return "", err
	}

	var resp struct {
		SessionURL string `json:"sessionUrl"`
	}
	err := c.do(ctx, http.MethodPost, "/api/checkout", map[string]string{
		"shippingAddressId": addressID,
		"currency":          string(currency),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	if err := c.cart.Clear(ctx); err != nil {
		return resp.SessionURL, fmt.Errorf("clear local cart: %w", err)
	}
	return resp.SessionURL, nil
}

// PlaceOrder places an unpaid order from the local cart.
func (c *Client) PlaceOrder(ctx context.Context, addressID string, currency domain.Currency) (*domain.Order, error) {
	if err := c.prepare(ctx, addressID); err != nil {
		return nil, err
	}

	var resp struct {
		Order *domain.Order `json:"order"`
	}
	err := c.do(ctx, http.MethodPost, "/api/orders", map[string]string{
		"shippingAddressId": addressID,
		"currency":          string(currency),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	if err := c.cart.Clear(ctx); err != nil {
		return resp.Order, fmt.Errorf("clear local cart: %w", err)
	}
	return resp.Order, nil
}

func (c *Client) Order(ctx context.Context, id string) (*domain.Order, error) {
	var resp struct {
		Order *domain.Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}
