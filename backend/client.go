// Package backend talks to the outlet's catalog and order service over JSON/HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
)

var ErrMalformedResponse = errors.New("response has no data array")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// CategoryRecord is a category exactly as the backend sends it. Invalid is
// set when the record itself could not be decoded.
type CategoryRecord struct {
	Name    string `json:"name"`
	Invalid error  `json:"-"`
}

// ItemRecord is an item exactly as the backend sends it. Optional fields come
// back empty when absent or null; Price may be a JSON string or number.
// A record that does not decode keeps its raw JSON in Raw and the decode
// error in Invalid, so one bad record does not fail the whole listing.
type ItemRecord struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        json.RawMessage `json:"price"`
	FoodType     string          `json:"foodType"`
	Image        string          `json:"image"`
	CategoryName string          `json:"categoryName"`

	Raw     json.RawMessage `json:"-"`
	Invalid error           `json:"-"`
}

type Config struct {
	BaseURL        string
	OutletID       int64
	CategoriesPath string // fmt pattern taking the outlet id
	ItemsPath      string // fmt pattern taking the outlet id
	OrdersPath     string
	Timeout        time.Duration
}

type Client struct {
	http *http.Client
	cfg  Config
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		http: &http.Client{Timeout: timeout},
		cfg:  cfg,
	}
}

// Categories fetches GET {categories}/{outletId}.
func (c *Client) Categories(ctx context.Context) ([]CategoryRecord, error) {
	data, err := c.getData(ctx, fmt.Sprintf(c.cfg.CategoriesPath, c.cfg.OutletID))
	if err != nil {
		return nil, errors.Wrap(err, "fetch categories")
	}
	records := make([]CategoryRecord, len(data))
	for i, raw := range data {
		if err := json.Unmarshal(raw, &records[i]); err != nil {
			records[i] = CategoryRecord{Invalid: errors.Wrapf(err, "category record %d", i)}
		}
	}
	return records, nil
}

// Items fetches GET {items}/{outletId}.
func (c *Client) Items(ctx context.Context) ([]ItemRecord, error) {
	data, err := c.getData(ctx, fmt.Sprintf(c.cfg.ItemsPath, c.cfg.OutletID))
	if err != nil {
		return nil, errors.Wrap(err, "fetch items")
	}
	records := make([]ItemRecord, len(data))
	for i, raw := range data {
		if err := json.Unmarshal(raw, &records[i]); err != nil {
			records[i] = ItemRecord{Raw: raw, Invalid: errors.Wrapf(err, "item record %d", i)}
		}
	}
	return records, nil
}

// getData fetches a {"data": [...]} listing and returns its records undecoded.
func (c *Client) getData(ctx context.Context, path string) ([]json.RawMessage, error) {
	var env struct {
		Data *[]json.RawMessage `json:"data"`
	}
	if err := c.getJSON(ctx, path, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, ErrMalformedResponse
	}
	return *env.Data, nil
}

// CreateOrder posts a walk-in order. The response body is not interpreted
// beyond the status code. requestID is sent as X-Request-ID when set.
func (c *Client) CreateOrder(ctx context.Context, requestID string, order models.Order) error {
	body, err := json.Marshal(order)
	if err != nil {
		return errors.Wrap(err, "encode order")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.OrdersPath, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build order request")
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "create order")
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return errors.Wrap(err, "create order")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func checkStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Method: req.Method,
		URL:    req.URL.String(),
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(b)),
	}
}
