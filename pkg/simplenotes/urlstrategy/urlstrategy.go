// Package urlstrategy decides which URL is recorded on an image and used for
// short url redirects.
package urlstrategy

import (
	"context"
	"fmt"
)

// URLStrategy defines the interface for URL generation strategies
type URLStrategy interface {
	// ObjectURL returns the public URL of the object stored under objectName
	ObjectURL(ctx context.Context, objectName string) (string, error)
}

// URLStrategyType represents the type of URL strategy
type URLStrategyType string

const (
	// CDN strategy: direct URLs under a CDN base
	StrategyTypeCDN URLStrategyType = "cdn"

	// Content-based strategy: URLs routed through the application's file endpoint
	StrategyTypeContentBased URLStrategyType = "content-based"

	// Storage-delegated strategy: the blob store's own public URL
	StrategyTypeStorageDelegated URLStrategyType = "storage-delegated"
)

// Config holds configuration for URL strategy creation
type Config struct {
	Type       URLStrategyType
	CDNBaseURL string    // For CDN strategy
	APIBaseURL string    // For content-based strategy
	BlobStore  BlobStore // For storage-delegated strategy
}

// NewURLStrategy creates a URL strategy based on the configuration
func NewURLStrategy(config Config) (URLStrategy, error) {
	switch config.Type {
	case StrategyTypeCDN:
		if config.CDNBaseURL == "" {
			return nil, fmt.Errorf("CDN base URL is required for CDN strategy")
		}
		return NewCDN(config.CDNBaseURL), nil

	case StrategyTypeContentBased:
		if config.APIBaseURL == "" {
			return nil, fmt.Errorf("API base URL is required for content-based strategy")
		}
		return NewContentBased(config.APIBaseURL), nil

	case StrategyTypeStorageDelegated, "":
		if config.BlobStore == nil {
			return nil, fmt.Errorf("blob store is required for storage-delegated strategy")
		}
		return NewStorageDelegated(config.BlobStore), nil

	default:
		return nil, fmt.Errorf("unsupported URL strategy type: %s", config.Type)
	}
}
