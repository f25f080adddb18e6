package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"deepscout/internal/models"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// CatalogService serves the globally pre-registered MCP server catalog from a
// YAML file and hot-reloads it on change. A missing file yields an empty
// catalog rather than an error.
type CatalogService struct {
	mu      sync.RWMutex
	path    string
	servers []models.CatalogServer
	watcher *fsnotify.Watcher
}

// NewCatalogService loads the catalog and starts watching the file.
func NewCatalogService(path string) (*CatalogService, error) {
	s := &CatalogService{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Catalog watcher unavailable: %v", err)
		return s, nil
	}
	// Watch the directory so editor save-via-rename is still observed.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		log.Printf("⚠️  Failed to watch catalog dir: %v", err)
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

func (s *CatalogService) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				log.Printf("⚠️  Catalog reload failed: %v", err)
			} else {
				log.Printf("✅ MCP catalog reloaded (%d servers)", len(s.Servers()))
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Catalog watcher error: %v", err)
		}
	}
}

func (s *CatalogService) reload() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.servers = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	s.mu.Lock()
	s.servers = catalog.Servers
	s.mu.Unlock()
	return nil
}

// Servers returns a copy of the catalog.
func (s *CatalogService) Servers() []models.CatalogServer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CatalogServer(nil), s.servers...)
}

// Close stops the file watcher.
func (s *CatalogService) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
