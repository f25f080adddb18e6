package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testCatalogYAML = `servers:
  - name: tavily-search
    description: Web search via the Tavily API
    transport: stdio
    command: npx
    args: ["-y", "tavily-mcp"]
  - name: context-docs
    description: Library documentation lookup
    transport: streamable_http
    url: https://mcp.example.com/docs
`

func TestCatalogLoadsServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	svc, err := NewCatalogService(path)
	if err != nil {
		t.Fatalf("NewCatalogService failed: %v", err)
	}
	defer svc.Close()

	servers := svc.Servers()
	if len(servers) != 2 {
		t.Fatalf("catalog has %d servers, want 2", len(servers))
	}
	if servers[0].Name != "tavily-search" || servers[1].Transport != "streamable_http" {
		t.Errorf("catalog content mismatch: %+v", servers)
	}
}

func TestCatalogMissingFileIsEmpty(t *testing.T) {
	svc, err := NewCatalogService(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("NewCatalogService failed: %v", err)
	}
	defer svc.Close()

	if servers := svc.Servers(); len(servers) != 0 {
		t.Errorf("expected an empty catalog, got %d servers", len(servers))
	}
}

func TestCatalogReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	svc, err := NewCatalogService(path)
	if err != nil {
		t.Fatalf("NewCatalogService failed: %v", err)
	}
	defer svc.Close()

	updated := testCatalogYAML + `  - name: github-tools
    description: Repository operations
    transport: stdio
    command: github-mcp
`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to rewrite catalog: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		if len(svc.Servers()) == 3 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("catalog did not pick up the new server, have %d", len(svc.Servers()))
		case <-time.After(50 * time.Millisecond):
		}
	}
}
