package settings

import "testing"

func TestBuildChatConfigFromActiveFlow(t *testing.T) {
	doc := NewDefaultDocument()
	flow := &doc.Flows[0]
	flow.GeneralSettings.MaxStepNum = 5
	flow.GeneralSettings.ReportStyle = ReportStylePopularScience
	flow.Prompts[RolePlanner] = "plan carefully"
	flow.Prompts[RoleCoder] = ""

	cfg := BuildChatConfig(doc)
	if cfg.MaxStepNum != 5 {
		t.Errorf("Expected max_step_num 5, got %d", cfg.MaxStepNum)
	}
	if cfg.ReportStyle != ReportStylePopularScience {
		t.Errorf("Expected report style popular_science, got %s", cfg.ReportStyle)
	}
	if cfg.CustomPrompts[RolePlanner] != "plan carefully" {
		t.Errorf("Expected planner prompt forwarded, got %v", cfg.CustomPrompts)
	}
	if _, ok := cfg.CustomPrompts[RoleCoder]; ok {
		t.Error("Empty prompts should be omitted from custom_prompts")
	}
}

func TestBuildChatConfigMCPServers(t *testing.T) {
	doc := NewDefaultDocument()
	doc.MCP.Servers = []MCPServer{
		{
			Name:      "search",
			Transport: TransportStdio,
			Command:   "uvx",
			Args:      []string{"mcp-search"},
			Enabled:   true,
			Tools:     []MCPTool{{Name: "web_search"}, {Name: "crawl"}},
		},
		{
			Name:      "disabled",
			Transport: TransportStdio,
			Command:   "noop",
			Enabled:   false,
			Tools:     []MCPTool{{Name: "t"}},
		},
		{
			Name:      "toolless",
			Transport: TransportStreamableHTTP,
			URL:       "https://mcp.example.com",
			Enabled:   true,
		},
	}

	cfg := BuildChatConfig(doc)
	if len(cfg.MCPSettings.Servers) != 1 {
		t.Fatalf("Expected only the enabled server with tools, got %v", cfg.MCPSettings.Servers)
	}
	srv, ok := cfg.MCPSettings.Servers["search"]
	if !ok {
		t.Fatal("Expected server keyed by name")
	}
	if srv.Transport != TransportStdio || srv.Command != "uvx" {
		t.Errorf("Transport descriptor wrong: %+v", srv)
	}
	if len(srv.EnabledTools) != 2 || srv.EnabledTools[0] != "web_search" {
		t.Errorf("Expected enabled_tools from tool list, got %v", srv.EnabledTools)
	}
	if len(srv.AddToAgents) != 1 || srv.AddToAgents[0] != RoleResearcher {
		t.Errorf("Expected add_to_agents [researcher], got %v", srv.AddToAgents)
	}
}

func TestBuildChatConfigEmptyDocument(t *testing.T) {
	cfg := BuildChatConfig(&Document{})
	if cfg.MaxPlanIterations != 1 || cfg.ReportStyle != ReportStyleAcademic {
		t.Errorf("Expected synthesized defaults for empty document, got %+v", cfg)
	}
}

func TestMergePreRegisteredRespectsToggles(t *testing.T) {
	doc := NewDefaultDocument()
	doc.MCP.PreRegistered = []PreRegisteredToggle{
		{Name: "tavily-search", Enabled: true},
		{Name: "github", Enabled: false},
	}
	doc.MCP.Servers = []MCPServer{
		{
			Name:      "tavily-search",
			Transport: TransportStdio,
			Command:   "my-own-tavily",
			Enabled:   true,
			Tools:     []MCPTool{{Name: "search"}},
		},
	}

	catalog := []MCPServer{
		{Name: "tavily-search", Transport: TransportStdio, Command: "npx", Tools: []MCPTool{{Name: "search"}}},
		{Name: "github", Transport: TransportStdio, Command: "npx", Tools: []MCPTool{{Name: "issues"}}},
		{Name: "context7", Transport: TransportStreamableHTTP, URL: "https://mcp.example.com", Tools: []MCPTool{{Name: "docs"}}},
	}

	cfg := BuildChatConfig(doc)
	MergePreRegistered(&cfg, doc, catalog)

	// The account's own server wins over the catalog entry of the same name.
	if got := cfg.MCPSettings.Servers["tavily-search"].Command; got != "my-own-tavily" {
		t.Errorf("Expected the custom server to win, got command %q", got)
	}
	if _, ok := cfg.MCPSettings.Servers["github"]; ok {
		t.Error("Disabled catalog server should not be merged")
	}
	if _, ok := cfg.MCPSettings.Servers["context7"]; ok {
		t.Error("Untoggled catalog server should not be merged")
	}

	doc.MCP.PreRegistered = append(doc.MCP.PreRegistered, PreRegisteredToggle{Name: "context7", Enabled: true})
	cfg = BuildChatConfig(doc)
	MergePreRegistered(&cfg, doc, catalog)
	srv, ok := cfg.MCPSettings.Servers["context7"]
	if !ok {
		t.Fatal("Enabled catalog server should be merged")
	}
	if srv.URL != "https://mcp.example.com" || len(srv.EnabledTools) != 1 {
		t.Errorf("Merged catalog server mismatch: %+v", srv)
	}
}
