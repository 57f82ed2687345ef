package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/util"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// pageSize is the largest page the store returns for one fetch
const pageSize = 500

// maxResponseSize caps how much of a response body is read
const maxResponseSize = 10 * 1024 * 1024

// Client talks to the records store REST API
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a records store client. rps bounds the request rate shared
// by every caller of this client; zero or less disables limiting.
func NewClient(baseURL, apiToken string, rps float64, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

type fetchResponse struct {
	Records []models.Record `json:"records"`
}

type writeRequest struct {
	Store   string          `json:"store"`
	Records []models.Record `json:"records"`
}

type updateRequest struct {
	Store   string   `json:"store"`
	Records []Update `json:"records"`
}

// Fetch returns every record matching filter, following pages
func (c *Client) Fetch(ctx context.Context, storeID string, filter Filter, fields []string) ([]models.Record, error) {
	return c.query(ctx, storeID, filter.Query(), fields)
}

// FetchIn returns records whose keyField is one of keys. Callers chunk keys at MaxBatch.
func (c *Client) FetchIn(ctx context.Context, storeID, keyField string, keys []string, fields []string) ([]models.Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if len(keys) > MaxBatch {
		return nil, fmt.Errorf("fetch of %d keys exceeds limit of %d", len(keys), MaxBatch)
	}
	return c.query(ctx, storeID, InQuery(keyField, keys), fields)
}

func (c *Client) query(ctx context.Context, storeID, query string, fields []string) ([]models.Record, error) {
	var all []models.Record
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("store", storeID)
		paged := strings.TrimSpace(fmt.Sprintf("%s limit %d offset %d", query, pageSize, offset))
		q.Set("query", paged)
		for i, f := range fields {
			q.Set("fields["+strconv.Itoa(i)+"]", f)
		}

		var resp fetchResponse
		if err := c.do(ctx, http.MethodGet, "/records?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Records...)
		if len(resp.Records) < pageSize {
			return all, nil
		}
	}
}

// BulkWrite creates records. Callers chunk records at MaxBatch.
func (c *Client) BulkWrite(ctx context.Context, storeID string, records []models.Record) (WriteResult, error) {
	if len(records) > MaxBatch {
		return WriteResult{}, fmt.Errorf("write of %d records exceeds limit of %d", len(records), MaxBatch)
	}
	var res WriteResult
	err := c.do(ctx, http.MethodPost, "/records", writeRequest{Store: storeID, Records: records}, &res)
	return res, err
}

// BulkUpdate updates records by id. Callers chunk updates at MaxBatch.
func (c *Client) BulkUpdate(ctx context.Context, storeID string, updates []Update) (WriteResult, error) {
	if len(updates) > MaxBatch {
		return WriteResult{}, fmt.Errorf("update of %d records exceeds limit of %d", len(updates), MaxBatch)
	}
	var res WriteResult
	err := c.do(ctx, http.MethodPut, "/records", updateRequest{Store: storeID, Records: updates}, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("records store client not configured: base URL required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Token", c.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.StoreRequestDuration.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		c.logger.Warn("Records store request failed", zap.String("method", method), zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	util.StoreRequestDuration.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
