// Package erp contains the read-only client for the upstream ERP API.
package erp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/owt-mfg/erpsync/internal/errors"
)

// DefaultTimeout covers the upstream's worst case; full-window extracts can
// run for minutes.
const DefaultTimeout = 10 * time.Minute

const dateParamLayout = "2006-01-02"

// Config captures the subset of ERP API behaviour we need.
type Config struct {
	APIURL             string
	TxnType            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Client             *http.Client
}

// Client fetches consolidated transaction rows from the ERP HTTP API. The
// upstream is read-only from our side; this client never mutates it.
type Client struct {
	apiURL  string
	txnType string
	client  *http.Client
}

// NewClient builds an ERP API client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	apiURL := strings.TrimSpace(cfg.APIURL)
	if apiURL == "" {
		return nil, errors.New("erp api url is required")
	}
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("invalid erp api url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
		if cfg.InsecureSkipVerify {
			// Some plant deployments front the ERP with self-signed certs.
			hc.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			}
		}
	}

	return &Client{
		apiURL:  apiURL,
		txnType: strings.TrimSpace(cfg.TxnType),
		client:  hc,
	}, nil
}

// FetchTransactions retrieves all transaction rows modified on or after
// fromDate. A zero fromDate omits the date filter entirely and fetches the
// upstream's full view.
//
// Numbers are decoded as json.Number so numeric identifiers survive without
// float formatting artifacts.
func (c *Client) FetchTransactions(ctx context.Context, fromDate time.Time) ([]map[string]any, error) {
	reqURL, err := c.buildURL(fromDate)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create erp request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.TransientWrap("erp request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.Transient(
			fmt.Sprintf("erp responded %s: %s", resp.Status, strings.TrimSpace(string(body))),
		)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var rows []map[string]any
	if decodeErr := dec.Decode(&rows); decodeErr != nil {
		return nil, fmt.Errorf("decode erp response: %w", decodeErr)
	}
	return rows, nil
}

func (c *Client) buildURL(fromDate time.Time) (string, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return "", fmt.Errorf("parse erp api url: %w", err)
	}

	q := u.Query()
	if c.txnType != "" {
		q.Set("txnType", c.txnType)
	}
	if !fromDate.IsZero() {
		q.Set("fromDate", fromDate.UTC().Format(dateParamLayout))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
