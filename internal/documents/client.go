package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"zonasi/pkg/platform/sentinel"
)

// CatalogClient fetches the document requirement catalog. The pipeline fetches
// it once per batch and never per student.
type CatalogClient interface {
	Catalog(ctx context.Context) ([]Requirement, error)
}

// TokenSource supplies the short-lived service token attached to catalog
// requests. The client never constructs tokens itself.
type TokenSource interface {
	ServiceToken() (string, error)
}

type catalogEnvelope struct {
	Data []Requirement `json:"data"`
}

// HTTPCatalogClient talks to the document service.
type HTTPCatalogClient struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

func NewHTTPCatalogClient(baseURL string, tokens TokenSource) *HTTPCatalogClient {
	return &HTTPCatalogClient{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Catalog fetches GET /master-dokumen with bearer authentication.
func (c *HTTPCatalogClient) Catalog(ctx context.Context) ([]Requirement, error) {
	token, err := c.tokens.ServiceToken()
	if err != nil {
		return nil, fmt.Errorf("issue service token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/master-dokumen", nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document service request: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("document service status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var envelope catalogEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w: %w", sentinel.ErrUnavailable, err)
	}
	return envelope.Data, nil
}
