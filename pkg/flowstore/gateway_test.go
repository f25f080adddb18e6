package flowstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"deepscout/pkg/settings"
)

func TestGatewaySendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		doc, _ := json.Marshal(settings.NewDefaultDocument())
		json.NewEncoder(w).Encode(map[string]json.RawMessage{"settings": doc})
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL, staticToken("secret-token"))
	if _, _, err := gw.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Expected bearer header, got %q", gotAuth)
	}
}

func TestGatewayUnauthenticatedWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL, func(ctx context.Context) (string, error) { return "", nil })
	_, _, err := gw.Fetch(context.Background())
	if err == nil {
		t.Fatal("Expected error from rejected unauthenticated request")
	}
	if gotAuth != "" {
		t.Errorf("Expected no Authorization header, got %q", gotAuth)
	}
}

func TestGatewayFetchNormalizesLegacyDocument(t *testing.T) {
	legacy := json.RawMessage(`{"general": {"maxStepNum": 5}, "prompts": {"coder": "x"}}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]json.RawMessage{"settings": legacy})
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL, staticToken("t"))
	doc, migrated, err := gw.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !migrated {
		t.Error("Legacy document should report migration")
	}
	if len(doc.Flows) != 1 || !doc.Flows[0].IsDefault {
		t.Errorf("Legacy document not migrated to single default flow: %+v", doc)
	}
	if doc.Flows[0].Prompts[settings.RoleCoder] != "x" {
		t.Error("Legacy prompts lost in migration")
	}
}

func TestGatewayPushRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL, staticToken("t"))
	if err := gw.Push(context.Background(), settings.NewDefaultDocument()); err == nil {
		t.Error("Expected error for non-200 save response")
	}
}
