package models

import "deepscout/pkg/settings"

// CatalogServer is a globally pre-registered MCP server. The catalog is fixed
// server-side; accounts can only toggle entries on or off.
type CatalogServer struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description"`
	Transport   string            `json:"transport" yaml:"transport"`
	Command     string            `json:"command,omitempty" yaml:"command"`
	Args        []string          `json:"args,omitempty" yaml:"args"`
	URL         string            `json:"url,omitempty" yaml:"url"`
	Env         map[string]string `json:"env,omitempty" yaml:"env"`
	Tools       []settings.MCPTool `json:"tools,omitempty" yaml:"tools"`
}

// Catalog is the on-disk catalog file shape.
type Catalog struct {
	Servers []CatalogServer `json:"servers" yaml:"servers"`
}
