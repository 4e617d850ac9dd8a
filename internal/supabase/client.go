package supabase

import (
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
)

type Client struct {
	Supabase *supabase.Client
	baseURL  string
}

// NewClient builds a service-role Supabase client. Only the storage API is
// used; records live in the configured record store.
func NewClient(supabaseURL, serviceKey string) (*Client, error) {
	baseURL := strings.TrimRight(supabaseURL, "/")
	client, err := supabase.NewClient(baseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		Supabase: client,
		baseURL:  baseURL,
	}, nil
}

// Storage returns a blob store bound to bucket.
func (c *Client) Storage(bucket string) *StorageClient {
	return &StorageClient{
		client:  c.Supabase.Storage,
		bucket:  bucket,
		baseURL: c.baseURL,
	}
}
