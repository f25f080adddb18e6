package settings

// ChatServerConfig is the per-server descriptor forwarded to the research
// agent backend for one enabled MCP server.
type ChatServerConfig struct {
	Transport    string            `json:"transport"`
	Command      string            `json:"command,omitempty"`
	Args         []string          `json:"args,omitempty"`
	URL          string            `json:"url,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	EnabledTools []string          `json:"enabled_tools"`
	AddToAgents  []string          `json:"add_to_agents"`
}

// ChatMCPSettings groups the MCP descriptors keyed by server name.
type ChatMCPSettings struct {
	Servers map[string]ChatServerConfig `json:"servers"`
}

// ChatConfig is the projection of the active flow and enabled MCP servers
// that accompanies a chat turn. It is the settings store's sole export to the
// rest of the application.
type ChatConfig struct {
	AutoAcceptedPlan              bool              `json:"auto_accepted_plan"`
	EnableDeepThinking            bool              `json:"enable_deep_thinking"`
	EnableBackgroundInvestigation bool              `json:"enable_background_investigation"`
	MaxPlanIterations             int               `json:"max_plan_iterations"`
	MaxStepNum                    int               `json:"max_step_num"`
	MaxSearchResults              int               `json:"max_search_results"`
	ReportStyle                   string            `json:"report_style"`
	MCPSettings                   ChatMCPSettings   `json:"mcp_settings"`
	CustomPrompts                 map[string]string `json:"custom_prompts"`
}

// mcpResearchAgents are the agents MCP tools are attached to.
var mcpResearchAgents = []string{RoleResearcher}

// BuildChatConfig projects the document's active flow plus its enabled custom
// MCP servers into the shape the agent backend consumes. Disabled servers and
// servers with no listed tools are omitted.
func BuildChatConfig(doc *Document) ChatConfig {
	flow := doc.ActiveFlow()
	if flow == nil {
		synthesized := NewDefaultFlow()
		flow = &synthesized
	}

	cfg := ChatConfig{
		AutoAcceptedPlan:              flow.GeneralSettings.AutoAcceptedPlan,
		EnableDeepThinking:            flow.GeneralSettings.EnableDeepThinking,
		EnableBackgroundInvestigation: flow.GeneralSettings.EnableBackgroundInvestigation,
		MaxPlanIterations:             flow.GeneralSettings.MaxPlanIterations,
		MaxStepNum:                    flow.GeneralSettings.MaxStepNum,
		MaxSearchResults:              flow.GeneralSettings.MaxSearchResults,
		ReportStyle:                   flow.GeneralSettings.ReportStyle,
		MCPSettings:                   ChatMCPSettings{Servers: map[string]ChatServerConfig{}},
		CustomPrompts:                 map[string]string{},
	}

	for role, prompt := range flow.Prompts {
		if prompt != "" {
			cfg.CustomPrompts[role] = prompt
		}
	}

	for _, srv := range doc.MCP.Servers {
		if !srv.Enabled || len(srv.Tools) == 0 {
			continue
		}
		enabled := make([]string, 0, len(srv.Tools))
		for _, tool := range srv.Tools {
			enabled = append(enabled, tool.Name)
		}
		cfg.MCPSettings.Servers[srv.Name] = ChatServerConfig{
			Transport:    srv.Transport,
			Command:      srv.Command,
			Args:         append([]string(nil), srv.Args...),
			URL:          srv.URL,
			Env:          srv.Env,
			EnabledTools: enabled,
			AddToAgents:  append([]string(nil), mcpResearchAgents...),
		}
	}

	return cfg
}

// MergePreRegistered adds catalog servers the account has enabled to the
// config. Account-custom servers of the same name win; catalog entries never
// overwrite them.
func MergePreRegistered(cfg *ChatConfig, doc *Document, catalog []MCPServer) {
	enabled := make(map[string]bool, len(doc.MCP.PreRegistered))
	for _, t := range doc.MCP.PreRegistered {
		enabled[t.Name] = t.Enabled
	}

	for _, srv := range catalog {
		if !enabled[srv.Name] || len(srv.Tools) == 0 {
			continue
		}
		if _, taken := cfg.MCPSettings.Servers[srv.Name]; taken {
			continue
		}
		tools := make([]string, 0, len(srv.Tools))
		for _, tool := range srv.Tools {
			tools = append(tools, tool.Name)
		}
		cfg.MCPSettings.Servers[srv.Name] = ChatServerConfig{
			Transport:    srv.Transport,
			Command:      srv.Command,
			Args:         append([]string(nil), srv.Args...),
			URL:          srv.URL,
			Env:          srv.Env,
			EnabledTools: tools,
			AddToAgents:  append([]string(nil), mcpResearchAgents...),
		}
	}
}
