package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"kidlingo/internal/domain/narration"
	"kidlingo/internal/narration/cache"
)

// RemoteError is an error reported by a gateway server. Its Kind is the wire
// kind, so narration.KindOf sees through it.
type RemoteError struct {
	Status  int
	kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Kind() string { return e.kind }

// Client talks to a gateway served by NewHandler. It satisfies the same
// Synthesize contract as *Gateway.
type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

func NewClient(baseURL string, timeout time.Duration, log logrus.FieldLogger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.WithField("gateway", baseURL),
	}
}

func (c *Client) Synthesize(ctx context.Context, req narration.Request) (*narration.Asset, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/narrations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	var out narrateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &RemoteError{Status: resp.StatusCode, kind: narration.KindInternal, Message: fmt.Sprintf("unreadable response: %v", err)}
	}
	if out.Error != nil {
		return nil, &RemoteError{Status: resp.StatusCode, kind: out.Error.Kind, Message: out.Error.Message}
	}
	if resp.StatusCode != http.StatusOK || out.AudioAsset == nil {
		return nil, &RemoteError{Status: resp.StatusCode, kind: narration.KindInternal, Message: "response carried no asset"}
	}

	a := out.AudioAsset.asset()
	if len(a.Payload) == 0 {
		if a.Payload, err = c.fetch(ctx, out.AudioAsset.PayloadRef); err != nil {
			return nil, err
		}
	}
	c.log.WithFields(logrus.Fields{"asset": a.ID, "provider": a.Provider}).Debug("narration received")
	return a, nil
}

// Stats returns the server's cache counters.
func (c *Client) Stats(ctx context.Context) (cache.Stats, error) {
	var stats cache.Stats
	body, err := c.get(ctx, "/v1/cache/stats")
	if err != nil {
		return stats, err
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		return stats, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

func (c *Client) fetch(ctx context.Context, ref string) ([]byte, error) {
	audio, err := c.get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	return audio, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Status: resp.StatusCode, kind: narration.KindInternal, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}
