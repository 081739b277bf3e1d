package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradeshield/config"
	"tradeshield/taxid"
)

// Client verifies identifiers against a tax-authority API. Malformed numbers
// are rejected locally and never sent upstream.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

type verifyRequest struct {
	Number string `json:"number"`
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	Status  string `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func NewClient(cfg config.TaxAPIConfig, log *zap.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:     log.Named("verifier"),
	}
}

func (c *Client) VerifyPAN(ctx context.Context, pan string) (*Result, error) {
	res := checkPAN(taxid.Normalize(pan))
	if !res.Verified {
		return res, nil
	}
	return c.verify(ctx, "/pan/verify", res)
}

func (c *Client) VerifyGST(ctx context.Context, gst string) (*Result, error) {
	res := checkGST(taxid.Normalize(gst))
	if !res.Verified {
		return res, nil
	}
	return c.verify(ctx, "/gst/verify", res)
}

func (c *Client) verify(ctx context.Context, endpoint string, res *Result) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	body, err := json.Marshal(verifyRequest{Number: res.Number})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", res.Kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("tax api request failed", zap.String("kind", res.Kind), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		c.log.Warn("tax api server error", zap.String("kind", res.Kind), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("tax api rejected %s verification: status %d: %s", res.Kind, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	res.Source = SourceRemote
	res.Verified = out.Valid
	res.RegisteredName = out.Name
	res.Message = out.Message
	res.Status = out.Status
	if res.Status == "" {
		if out.Valid {
			res.Status = StatusActive
		} else {
			res.Status = StatusInactive
		}
	}

	c.log.Debug("tax identifier verified",
		zap.String("kind", res.Kind),
		zap.Bool("verified", res.Verified),
		zap.String("status", res.Status))
	return res, nil
}
