package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/x402-labs/paygate"
)

// HTTPSource reads requirement documents from a read-only listing
// endpoint that returns a JSON array of documents (the dashboard
// backend's /list).
type HTTPSource struct {
	client *resty.Client
	url    string
}

// NewHTTPSource creates a source listing documents from url.
func NewHTTPSource(url string) *HTTPSource {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	return &HTTPSource{client: client, url: url}
}

// NewHTTPSourceWithClient creates a source using a preconfigured resty
// client, for callers that need custom auth or TLS settings.
func NewHTTPSourceWithClient(client *resty.Client, url string) *HTTPSource {
	return &HTTPSource{client: client, url: url}
}

// List implements Source.
func (s *HTTPSource) List(ctx context.Context) ([]paygate.RequirementDoc, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("listing config documents from %s: %w", s.url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing config documents from %s: status %d", s.url, resp.StatusCode())
	}

	var docs []paygate.RequirementDoc
	if err := json.Unmarshal(resp.Body(), &docs); err != nil {
		return nil, fmt.Errorf("parsing config listing: %w", err)
	}
	return docs, nil
}
