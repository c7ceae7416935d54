package urlstrategy

import (
	"context"
	"fmt"
	"strings"
)

// CDNStrategy generates URLs that point directly at a CDN fronting the bucket
type CDNStrategy struct {
	BaseURL string // e.g., "https://cdn.example.com"
}

// NewCDN creates a new CDN URL strategy
func NewCDN(baseURL string) *CDNStrategy {
	return &CDNStrategy{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// ObjectURL returns {base}/{objectName}
func (s *CDNStrategy) ObjectURL(ctx context.Context, objectName string) (string, error) {
	if s.BaseURL == "" {
		return "", fmt.Errorf("CDN base URL not configured")
	}
	return fmt.Sprintf("%s/%s", s.BaseURL, strings.TrimPrefix(objectName, "/")), nil
}
