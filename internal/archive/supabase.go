// Package archive uploads retained turn audio to Supabase Storage. It is an
// optional mirror of the local retention directory; upload failures are
// warnings, never turn failures.
package archive

import (
	"bytes"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"github.com/langenhagen/vincent/internal/config"
)

// Storage wraps a Supabase Storage bucket for turn audio.
type Storage struct {
	client *supabase.Client
	bucket string
}

// New builds a storage client from the environment-provided credentials.
func New(cfg config.Archive) (*Storage, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket}, nil
}

// Upload stores one turn's WAV under the given object key.
func (s *Storage) Upload(key string, data []byte) error {
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upload %s to supabase: %w", key, err)
	}
	return nil
}
