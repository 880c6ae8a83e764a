// Package sink contains the client for the downstream collection API.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/owt-mfg/erpsync/internal/core"
	"github.com/owt-mfg/erpsync/internal/domain/model"
	apperrors "github.com/owt-mfg/erpsync/internal/errors"
)

// DefaultTimeout is the per-request timeout against the sink.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a sink response we retain for the push log.
const maxBodyBytes = 4096

// Config captures the subset of sink API behaviour we need.
type Config struct {
	BaseURL    string
	Token      string
	Collection string
	Timeout    time.Duration
	Client     *http.Client
}

// Client delivers documents to a PocketBase-style collection API. Records
// are addressed by the three business key fields; Upsert patches an existing
// record or creates a new one.
type Client struct {
	baseURL    string
	token      string
	collection string
	client     *http.Client
}

// NewClient builds a sink API client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("sink base url is required")
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		return nil, errors.New("sink collection is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		collection: collection,
		client:     hc,
	}, nil
}

// Upsert writes the document under its business key: PATCH when a record
// already exists, POST otherwise. A stale CachedID falls back to the lookup
// path, so cache contents never cause a wrong write.
//
// The returned PushResult describes the final sink call even when err is
// non-nil, so callers can log the attempt.
func (c *Client) Upsert(ctx context.Context, p core.UpsertParams) (*core.PushResult, error) {
	if !p.Key.Valid() {
		return nil, apperrors.Validation("business key is incomplete")
	}
	if len(p.Document) == 0 {
		return nil, apperrors.Validation("document is empty")
	}

	if p.CachedID != "" {
		result, err := c.update(ctx, p.CachedID, p.Document)
		if err == nil || !isNotFound(result) {
			return result, err
		}
		// Cached ID no longer exists; resolve by key below.
	}

	sinkID, err := c.FindByKey(ctx, p.Key)
	if err != nil {
		return nil, err
	}

	if sinkID != "" {
		return c.update(ctx, sinkID, p.Document)
	}
	return c.create(ctx, p.Document)
}

// FindByKey returns the sink record ID matching the business key, or "" when
// no record exists.
func (c *Client) FindByKey(ctx context.Context, key model.BusinessKey) (string, error) {
	filter := fmt.Sprintf("(CUST_ORDER_ID='%s' && CUST_ORDER_LINE_NO='%s' && BOM_PART_ID='%s')",
		escapeFilterValue(key.OrderID),
		escapeFilterValue(key.LineNo),
		escapeFilterValue(key.PartID),
	)

	q := url.Values{}
	q.Set("page", "1")
	q.Set("perPage", "1")
	q.Set("filter", filter)
	reqURL := c.recordsURL() + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create sink lookup request: %w", err)
	}
	c.setHeaders(req, false)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperrors.TransientWrap("sink lookup failed", err)
	}
	body, readErr := readBody(resp)
	if readErr != nil {
		return "", readErr
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Transient(
			fmt.Sprintf("sink lookup responded %s: %s", resp.Status, strings.TrimSpace(body)),
		)
	}

	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if decodeErr := json.Unmarshal([]byte(body), &page); decodeErr != nil {
		return "", fmt.Errorf("decode sink lookup response: %w", decodeErr)
	}
	if len(page.Items) == 0 {
		return "", nil
	}
	return page.Items[0].ID, nil
}

func (c *Client) create(ctx context.Context, doc json.RawMessage) (*core.PushResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recordsURL(), bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("create sink create request: %w", err)
	}
	c.setHeaders(req, true)

	result, err := c.doWrite(req)
	if err != nil {
		return result, err
	}
	result.Created = true
	return result, nil
}

func (c *Client) update(ctx context.Context, sinkID string, doc json.RawMessage) (*core.PushResult, error) {
	reqURL := c.recordsURL() + "/" + url.PathEscape(sinkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, reqURL, bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("create sink update request: %w", err)
	}
	c.setHeaders(req, true)

	return c.doWrite(req)
}

func (c *Client) doWrite(req *http.Request) (*core.PushResult, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.TransientWrap("sink request failed", err)
	}
	body, readErr := readBody(resp)
	if readErr != nil {
		return nil, readErr
	}

	result := &core.PushResult{
		StatusCode: resp.StatusCode,
		Body:       body,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, writeError(resp.StatusCode, resp.Status, body)
	}

	var record struct {
		ID string `json:"id"`
	}
	if decodeErr := json.Unmarshal([]byte(body), &record); decodeErr == nil {
		result.SinkID = record.ID
	}
	return result, nil
}

func writeError(code int, status, body string) error {
	msg := fmt.Sprintf("sink responded %s: %s", status, strings.TrimSpace(body))
	switch {
	case code == http.StatusNotFound:
		// The target record vanished between lookup and write; a retry
		// resolves it through the create path.
		return apperrors.Transient(msg)
	case code >= 400 && code < 500 && code != http.StatusTooManyRequests:
		// The sink rejected the document itself; retrying the same bytes
		// cannot succeed.
		return apperrors.Validation(msg)
	}
	return apperrors.Transient(msg)
}

func (c *Client) recordsURL() string {
	return c.baseURL + "/api/collections/" + url.PathEscape(c.collection) + "/records"
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
}

func readBody(resp *http.Response) (string, error) {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	closeErr := resp.Body.Close()
	if err != nil {
		return "", apperrors.TransientWrap("read sink response", errors.Join(err, closeErr))
	}
	if closeErr != nil {
		return "", fmt.Errorf("close sink response body: %w", closeErr)
	}
	return string(b), nil
}

func isNotFound(result *core.PushResult) bool {
	return result != nil && result.StatusCode == http.StatusNotFound
}

func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "\\'")
}
