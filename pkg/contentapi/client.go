// Package contentapi reads collections from a Strapi-compatible content API.
package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MaxPageSize is the largest page the content API serves.
const MaxPageSize = 100

// ErrUnauthorized is returned for 401/403 responses.
var ErrUnauthorized = errors.New("content api: unauthorized")

// PageMeta mirrors meta.pagination.
type PageMeta struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// Client fetches and normalizes collection pages.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// New builds a client. A zero timeout defaults to 30s.
func New(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// List fetches one page of a collection with relations populated.
func (c *Client) List(ctx context.Context, collection string, page, pageSize int) ([]Record, PageMeta, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	q := url.Values{}
	q.Set("pagination[page]", strconv.Itoa(page))
	q.Set("pagination[pageSize]", strconv.Itoa(pageSize))
	q.Set("populate", "*")
	endpoint := fmt.Sprintf("%s/api/%s?%s", c.baseURL, url.PathEscape(collection), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, PageMeta{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, PageMeta{}, fmt.Errorf("get %s: %w", collection, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, PageMeta{}, fmt.Errorf("read %s: %w", collection, err)
	}
	c.logger.Debug("content api page",
		zap.String("collection", collection),
		zap.Int("page", page),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, PageMeta{}, ErrUnauthorized
	case resp.StatusCode >= 300:
		return nil, PageMeta{}, fmt.Errorf("get %s: unexpected status %d", collection, resp.StatusCode)
	}
	return decodePage(body)
}

// FetchAll pages through a collection until limit records or the last page.
func (c *Client) FetchAll(ctx context.Context, collection string, limit int) ([]Record, error) {
	out := make([]Record, 0)
	for page := 1; ; page++ {
		records, meta, err := c.List(ctx, collection, page, MaxPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		if len(records) == 0 || (meta.PageCount > 0 && page >= meta.PageCount) || (meta.PageCount == 0 && len(records) < MaxPageSize) {
			return out, nil
		}
	}
}

// decodePage accepts {data: [...], meta: {...}} envelopes and bare arrays.
func decodePage(body []byte) ([]Record, PageMeta, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, PageMeta{}, fmt.Errorf("decode page: %w", err)
	}

	var (
		items []interface{}
		meta  PageMeta
	)
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		switch data := v["data"].(type) {
		case []interface{}:
			items = data
		case map[string]interface{}:
			items = []interface{}{data}
		}
		meta = decodeMeta(v["meta"])
	default:
		return nil, PageMeta{}, fmt.Errorf("decode page: unexpected payload")
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if rec, ok := normalize(obj); ok {
			records = append(records, rec)
		}
	}
	return records, meta, nil
}

func decodeMeta(v interface{}) PageMeta {
	m, ok := v.(map[string]interface{})
	if !ok {
		return PageMeta{}
	}
	p, ok := m["pagination"].(map[string]interface{})
	if !ok {
		return PageMeta{}
	}
	num := func(key string) int {
		if n, ok := p[key].(json.Number); ok {
			i, _ := n.Int64()
			return int(i)
		}
		return 0
	}
	return PageMeta{Page: num("page"), PageSize: num("pageSize"), PageCount: num("pageCount"), Total: num("total")}
}
