package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/config"
	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
)

// APIError is a non-2xx response from the marketplace.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace returned %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth retrying.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}

// Client calls the marketplace (M2) REST API with an access token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a marketplace HTTP client
func NewClient(cfg config.MarketplaceConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type orderPage struct {
	Orders []struct {
		ID        string    `json:"id"`
		Number    string    `json:"number"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"created_at"`
		Items     []struct {
			OfferID  string          `json:"offer_id"`
			Name     string          `json:"name"`
			Quantity int             `json:"quantity"`
			Price    decimal.Decimal `json:"price"`
		} `json:"items"`
	} `json:"orders"`
	Paging struct {
		HasNext  bool `json:"has_next"`
		NextPage int  `json:"next_page"`
	} `json:"paging"`
}

// ListNewOrders fetches all new/unprocessed orders, requesting successive
// pages until exhausted.
func (c *Client) ListNewOrders(ctx context.Context) ([]domain.MarketplaceOrder, error) {
	var orders []domain.MarketplaceOrder
	page := 1
	for {
		u, err := url.Parse(c.baseURL + "/api/v2/orders")
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("status", "new")
		q.Set("page", fmt.Sprintf("%d", page))
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("Marketplace order listing request failed", zap.Int("page", page), zap.Error(err))
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		var parsed orderPage
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse order listing: %w", err)
		}

		for _, o := range parsed.Orders {
			order := domain.MarketplaceOrder{
				ID:        o.ID,
				Number:    o.Number,
				Status:    o.Status,
				CreatedAt: o.CreatedAt,
			}
			for _, item := range o.Items {
				order.Items = append(order.Items, domain.MarketplaceOrderItem{
					OfferID:  item.OfferID,
					Name:     item.Name,
					Quantity: item.Quantity,
					Price:    item.Price,
				})
			}
			orders = append(orders, order)
		}

		if !parsed.Paging.HasNext || parsed.Paging.NextPage <= page {
			return orders, nil
		}
		page = parsed.Paging.NextPage
	}
}

// UpdateStock overwrites the available quantity for one offer. The write is
// an unconditional overwrite, which makes repeated pushes idempotent.
func (c *Client) UpdateStock(ctx context.Context, offerID string, available int) error {
	payload := map[string]interface{}{"available": available}
	return c.send(ctx, http.MethodPut, "/api/v2/offers/"+url.PathEscape(offerID)+"/stock", payload)
}

// NotifyShipment reports an order as shipped to the marketplace.
func (c *Client) NotifyShipment(ctx context.Context, marketplaceOrderID string) error {
	payload := map[string]interface{}{
		"status":     "shipped",
		"shipped_at": time.Now().UTC().Format(time.RFC3339),
	}
	return c.send(ctx, http.MethodPost, "/api/v2/orders/"+url.PathEscape(marketplaceOrderID)+"/shipment", payload)
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Marketplace request failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
}
