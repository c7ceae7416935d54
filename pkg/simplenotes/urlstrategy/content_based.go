package urlstrategy

import (
	"context"
	"fmt"
	"strings"
)

// ContentBasedStrategy routes image URLs through the application's
// /files/{note_id}/{filename} endpoint
type ContentBasedStrategy struct {
	APIBaseURL string // e.g., "/api/v1" or "https://api.example.com/api/v1"
}

// NewContentBased creates a new content-based URL strategy
func NewContentBased(apiBaseURL string) *ContentBasedStrategy {
	return &ContentBasedStrategy{APIBaseURL: strings.TrimSuffix(apiBaseURL, "/")}
}

// ObjectURL returns {api_base}/files/{objectName}
func (s *ContentBasedStrategy) ObjectURL(ctx context.Context, objectName string) (string, error) {
	return fmt.Sprintf("%s/files/%s", s.APIBaseURL, strings.TrimPrefix(objectName, "/")), nil
}
