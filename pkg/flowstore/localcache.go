package flowstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deepscout/pkg/settings"
)

// ErrNoLocalCache is returned when the store was built without a local cache.
var ErrNoLocalCache = errors.New("no local settings cache configured")

// LocalCache is the legacy/offline fallback: one JSON file per account id.
// The remote store stays authoritative; cached documents only bridge offline
// startup. Files are keyed by account id, never a single global key, so a
// cached document can never leak across accounts.
type LocalCache struct {
	dir string
}

// NewLocalCache creates the cache directory if needed.
func NewLocalCache(dir string) (*LocalCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create settings cache dir: %w", err)
	}
	return &LocalCache{dir: dir}, nil
}

func (c *LocalCache) path(accountID string) string {
	// Account ids are UUIDs from the identity provider; sanitize anyway so a
	// hostile id cannot escape the cache directory.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, accountID)
	return filepath.Join(c.dir, "settings-"+safe+".json")
}

// Load reads and normalizes the cached document for one account.
func (c *LocalCache) Load(accountID string) (*settings.Document, error) {
	raw, err := os.ReadFile(c.path(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to read cached settings: %w", err)
	}
	doc, _ := settings.Normalize(raw)
	return doc, nil
}

// Store writes the document for one account, replacing atomically so a crash
// mid-write never leaves a torn file.
func (c *LocalCache) Store(accountID string, doc *settings.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	tmp := c.path(accountID) + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write cached settings: %w", err)
	}
	if err := os.Rename(tmp, c.path(accountID)); err != nil {
		return fmt.Errorf("failed to replace cached settings: %w", err)
	}
	return nil
}

// Remove deletes the cached document for one account.
func (c *LocalCache) Remove(accountID string) error {
	err := os.Remove(c.path(accountID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
