package erp

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

	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/config"
	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
)

// Sales document states reported by the ERP.
const (
	StateNew       = "new"
	StateConfirmed = "confirmed"
	StateShipped   = "shipped"
	StateCancelled = "cancelled"
)

const productPageSize = 100

// APIError is a non-2xx response from the ERP.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("erp returned %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth retrying.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}

// Client calls the inventory system (M1) REST API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an ERP HTTP client
func NewClient(cfg config.ERPConfig, logger *zap.Logger) *Client {
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

type productPage struct {
	Meta struct {
		Size   int `json:"size"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"meta"`
	Rows []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Code     string `json:"code"`
		Archived bool   `json:"archived"`
	} `json:"rows"`
}

// Products lists every product, requesting successive pages until the
// reported size is exhausted.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	offset := 0
	for {
		u, err := url.Parse(c.baseURL + "/api/entity/product")
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("limit", fmt.Sprintf("%d", productPageSize))
		q.Set("offset", fmt.Sprintf("%d", offset))
		u.RawQuery = q.Encode()

		var page productPage
		if err := c.getJSON(ctx, u.String(), &page); err != nil {
			return nil, err
		}
		for _, row := range page.Rows {
			products = append(products, domain.Product{
				ID:       row.ID,
				Name:     row.Name,
				Code:     row.Code,
				Archived: row.Archived,
			})
		}
		offset += len(page.Rows)
		if len(page.Rows) == 0 || offset >= page.Meta.Size {
			return products, nil
		}
	}
}

type stockReport struct {
	Rows []struct {
		ProductID string `json:"product_id"`
		StoreID   string `json:"store_id"`
		StoreName string `json:"store_name"`
		Stock     int    `json:"stock"`
		Reserve   int    `json:"reserve"`
	} `json:"rows"`
}

// StockByProduct fetches the stock-by-store report filtered to one product.
// A product with no rows reports zero availability, not an error.
func (c *Client) StockByProduct(ctx context.Context, productID string) ([]domain.StockRow, error) {
	u, err := url.Parse(c.baseURL + "/api/report/stock/bystore")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("product", productID)
	u.RawQuery = q.Encode()

	var report stockReport
	if err := c.getJSON(ctx, u.String(), &report); err != nil {
		return nil, err
	}

	rows := make([]domain.StockRow, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, domain.StockRow{
			ProductID: row.ProductID,
			StoreID:   row.StoreID,
			StoreName: row.StoreName,
			Stock:     row.Stock,
			Reserve:   row.Reserve,
		})
	}
	return rows, nil
}

type createOrderRequest struct {
	ExternalRef string                `json:"external_ref"`
	Comment     string                `json:"comment,omitempty"`
	Positions   []createOrderPosition `json:"positions"`
}

type createOrderPosition struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// CreateCustomerOrder submits a sales document and returns the ERP's id
// for it.
func (c *Client) CreateCustomerOrder(ctx context.Context, draft domain.SalesDocumentDraft) (string, error) {
	reqBody := createOrderRequest{
		ExternalRef: draft.ExternalRef,
		Comment:     draft.Comment,
		Positions:   make([]createOrderPosition, 0, len(draft.Positions)),
	}
	for _, pos := range draft.Positions {
		reqBody.Positions = append(reqBody.Positions, createOrderPosition{
			ProductID: pos.ProductID,
			Quantity:  pos.Quantity,
			Price:     pos.Price.String(),
		})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/entity/customerorder", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ERP create order request failed", zap.String("external_ref", draft.ExternalRef), zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to parse create order response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create order response has no id")
	}
	return created.ID, nil
}

// OrderState returns the current state of a sales document.
func (c *Client) OrderState(ctx context.Context, internalOrderID string) (string, error) {
	var doc struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/api/entity/customerorder/"+url.PathEscape(internalOrderID), &doc); err != nil {
		return "", err
	}
	return doc.State, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ERP request failed", zap.String("url", rawURL), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
