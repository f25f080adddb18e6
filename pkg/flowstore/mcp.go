package flowstore

import (
	"time"

	"deepscout/pkg/settings"
)

// AddMCPServer adds or replaces an account-custom MCP server. Server names
// are unique within the custom list; adding an existing name overwrites its
// configuration but preserves the original creation time.
func (s *Store) AddMCPServer(srv settings.MCPServer) {
	s.mutate("addMCPServer", func(doc *settings.Document) bool {
		now := time.Now().UnixMilli()
		srv.UpdatedAt = now
		for i := range doc.MCP.Servers {
			if doc.MCP.Servers[i].Name == srv.Name {
				srv.CreatedAt = doc.MCP.Servers[i].CreatedAt
				doc.MCP.Servers[i] = srv
				return true
			}
		}
		srv.CreatedAt = now
		doc.MCP.Servers = append(doc.MCP.Servers, srv)
		return true
	})
}

// RemoveMCPServer deletes a custom server by name. Unknown names no-op.
func (s *Store) RemoveMCPServer(name string) {
	s.mutate("removeMCPServer", func(doc *settings.Document) bool {
		for i := range doc.MCP.Servers {
			if doc.MCP.Servers[i].Name == name {
				doc.MCP.Servers = append(doc.MCP.Servers[:i], doc.MCP.Servers[i+1:]...)
				return true
			}
		}
		return false
	})
}

// SetMCPServerEnabled toggles a custom server. Unknown names no-op.
func (s *Store) SetMCPServerEnabled(name string, enabled bool) {
	s.mutate("setMCPServerEnabled", func(doc *settings.Document) bool {
		for i := range doc.MCP.Servers {
			if doc.MCP.Servers[i].Name == name {
				if doc.MCP.Servers[i].Enabled == enabled {
					return false
				}
				doc.MCP.Servers[i].Enabled = enabled
				doc.MCP.Servers[i].UpdatedAt = time.Now().UnixMilli()
				return true
			}
		}
		return false
	})
}

// SetPreRegisteredEnabled records the per-account toggle for a server from
// the fixed pre-registered catalog. The catalog itself is never edited here.
func (s *Store) SetPreRegisteredEnabled(name string, enabled bool) {
	s.mutate("setPreRegisteredEnabled", func(doc *settings.Document) bool {
		for i := range doc.MCP.PreRegistered {
			if doc.MCP.PreRegistered[i].Name == name {
				if doc.MCP.PreRegistered[i].Enabled == enabled {
					return false
				}
				doc.MCP.PreRegistered[i].Enabled = enabled
				return true
			}
		}
		doc.MCP.PreRegistered = append(doc.MCP.PreRegistered, settings.PreRegisteredToggle{Name: name, Enabled: enabled})
		return true
	})
}

// SetModelParameters upserts the generation parameters for one model id.
func (s *Store) SetModelParameters(modelID string, params settings.ModelParameters) {
	s.mutate("setModelParameters", func(doc *settings.Document) bool {
		doc.ModelParameters[modelID] = params
		return true
	})
}

// DeleteModelParameters removes the overrides for one model id.
func (s *Store) DeleteModelParameters(modelID string) {
	s.mutate("deleteModelParameters", func(doc *settings.Document) bool {
		if _, ok := doc.ModelParameters[modelID]; !ok {
			return false
		}
		delete(doc.ModelParameters, modelID)
		return true
	})
}
