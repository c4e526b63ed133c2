// Package gateway implements the Wordstat HTTP API client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kvlab/wordstat-ingest/internal/metrics"
	"github.com/kvlab/wordstat-ingest/internal/wordstat"
)

// DefaultBaseURL is the production Wordstat API endpoint.
const DefaultBaseURL = "https://api.wordstat.yandex.net"

const contentType = "application/json;charset=utf-8"

// Config controls client behavior.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client issues single logical Wordstat operations. It performs no
// retries; callers decide whether a failed call is worth repeating.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New builds a Client. A nil logger is replaced with a no-op one.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type topRequestsPayload struct {
	Phrase  string   `json:"phrase"`
	Regions []int64  `json:"regions,omitempty"`
	Devices []string `json:"devices,omitempty"`
}

// TopRequests fetches the top related phrases for one phrase.
func (c *Client) TopRequests(ctx context.Context, phrase string, regions []int64, devices []string) (wordstat.TopResult, error) {
	var result wordstat.TopResult
	err := c.post(ctx, "/v1/topRequests", topRequestsPayload{
		Phrase:  phrase,
		Regions: regions,
		Devices: devices,
	}, &result)
	if err != nil {
		return wordstat.TopResult{}, err
	}
	return result, nil
}

// Dynamics fetches the search-volume series for one phrase.
func (c *Client) Dynamics(ctx context.Context, query wordstat.DynamicsQuery) (wordstat.DynamicsResult, error) {
	var result wordstat.DynamicsResult
	if err := c.post(ctx, "/v1/dynamics", query, &result); err != nil {
		return wordstat.DynamicsResult{}, err
	}
	return result, nil
}

// RegionsTree fetches the full region hierarchy.
func (c *Client) RegionsTree(ctx context.Context) ([]wordstat.RegionNode, error) {
	var forest []wordstat.RegionNode
	if err := c.post(ctx, "/v1/getRegionsTree", struct{}{}, &forest); err != nil {
		return nil, err
	}
	return forest, nil
}

// post issues one POST, mapping outcomes onto the typed error set:
// network failures become TransportError, non-200 statuses RemoteAPIError.
func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteRequest(endpoint, "transport_error", time.Since(start))
		c.logger.Error("wordstat request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return &wordstat.TransportError{Op: "POST " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RemoteRequest(endpoint, "transport_error", time.Since(start))
		return &wordstat.TransportError{Op: "read " + endpoint + " response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.RemoteRequest(endpoint, "api_error", time.Since(start))
		c.logger.Error("wordstat request rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return &wordstat.RemoteAPIError{Status: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		metrics.RemoteRequest(endpoint, "decode_error", time.Since(start))
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	metrics.RemoteRequest(endpoint, "ok", time.Since(start))
	c.logger.Debug("wordstat request succeeded",
		zap.String("endpoint", endpoint),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
