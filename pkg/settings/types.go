// Package settings defines the per-account settings document shared by the
// web client, the sync gateway and the server: named flows of agent prompts
// and generation settings, per-model parameters and MCP server configuration.
package settings

// SchemaVersion is the current settings document schema. Documents without a
// schemaVersion field are treated as pre-versioned and shape-sniffed by
// Normalize.
const SchemaVersion = 2

// Agent role keys. Flow.Prompts is keyed by this closed set.
const (
	RoleCoordinator = "coordinator"
	RolePlanner     = "planner"
	RoleResearcher  = "researcher"
	RoleCoder       = "coder"
	RoleReporter    = "reporter"
)

// Roles lists every agent role key in display order.
var Roles = []string{RoleCoordinator, RolePlanner, RoleResearcher, RoleCoder, RoleReporter}

// Report styles accepted by ReportStyle fields.
const (
	ReportStyleAcademic       = "academic"
	ReportStylePopularScience = "popular_science"
	ReportStyleNews           = "news"
	ReportStyleSocialMedia    = "social_media"
)

// ReportStyles lists the valid report styles.
var ReportStyles = []string{ReportStyleAcademic, ReportStylePopularScience, ReportStyleNews, ReportStyleSocialMedia}

// Bounds for the numeric general settings.
const (
	MinPlanIterations = 1
	MaxPlanIterations = 10
	MinStepNum        = 1
	MaxStepNum        = 20
	MinSearchResults  = 1
	MaxSearchResults  = 50
)

// GeneralSettings is the fixed-shape record of behavioral toggles and bounds
// carried by every flow.
type GeneralSettings struct {
	AutoAcceptedPlan              bool   `json:"autoAcceptedPlan"`
	EnableDeepThinking            bool   `json:"enableDeepThinking"`
	EnableBackgroundInvestigation bool   `json:"enableBackgroundInvestigation"`
	MaxPlanIterations             int    `json:"maxPlanIterations"`
	MaxStepNum                    int    `json:"maxStepNum"`
	MaxSearchResults              int    `json:"maxSearchResults"`
	ReportStyle                   string `json:"reportStyle"`
}

// Flow is a named, independently editable bundle of agent prompts and
// general settings. Exactly one flow in a valid document is the default.
type Flow struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	IsDefault       bool              `json:"isDefault"`
	Prompts         map[string]string `json:"prompts"`
	GeneralSettings GeneralSettings   `json:"generalSettings"`
	CreatedAt       int64             `json:"createdAt"`
	UpdatedAt       int64             `json:"updatedAt"`
}

// Clone returns a deep copy of the flow.
func (f *Flow) Clone() Flow {
	out := *f
	out.Prompts = make(map[string]string, len(f.Prompts))
	for k, v := range f.Prompts {
		out.Prompts[k] = v
	}
	return out
}

// ModelParameters holds per-model generation settings, keyed in the document
// by an external model identifier string.
type ModelParameters struct {
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"maxTokens"`
	TopP             float64 `json:"topP"`
	FrequencyPenalty float64 `json:"frequencyPenalty"`
}

// MCP transports.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable_http"
)

// MCPTool describes a single tool exposed by an MCP server.
type MCPTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MCPServer describes an account-custom MCP server connection. Stdio servers
// carry a command plus args; streamable HTTP servers carry a URL. Env applies
// to both.
type MCPServer struct {
	Name      string            `json:"name"`
	Transport string            `json:"transport"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	URL       string            `json:"url,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Enabled   bool              `json:"enabled"`
	Tools     []MCPTool         `json:"tools,omitempty"`
	CreatedAt int64             `json:"createdAt"`
	UpdatedAt int64             `json:"updatedAt"`
}

// PreRegisteredToggle records the per-account enabled state of a server from
// the fixed pre-registered catalog. Catalog entries are never added, removed
// or edited per account, only toggled.
type PreRegisteredToggle struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// MCPSettings groups the two MCP server populations.
type MCPSettings struct {
	Servers       []MCPServer           `json:"servers"`
	PreRegistered []PreRegisteredToggle `json:"preRegistered"`
}

// Document is the root settings object persisted per account. It is the unit
// of persistence; no two accounts ever share one.
type Document struct {
	SchemaVersion   int                        `json:"schemaVersion"`
	Flows           []Flow                     `json:"flows"`
	ActiveFlowID    string                     `json:"activeFlowId"`
	ModelParameters map[string]ModelParameters `json:"modelParameters"`
	MCP             MCPSettings                `json:"mcp"`
}

// Clone returns a deep copy of the document. Mutators copy before writing so
// handed-out snapshots are never modified in place.
func (d *Document) Clone() *Document {
	out := &Document{
		SchemaVersion:   d.SchemaVersion,
		ActiveFlowID:    d.ActiveFlowID,
		Flows:           make([]Flow, 0, len(d.Flows)),
		ModelParameters: make(map[string]ModelParameters, len(d.ModelParameters)),
	}
	for i := range d.Flows {
		out.Flows = append(out.Flows, d.Flows[i].Clone())
	}
	for k, v := range d.ModelParameters {
		out.ModelParameters[k] = v
	}
	out.MCP.Servers = make([]MCPServer, 0, len(d.MCP.Servers))
	for _, s := range d.MCP.Servers {
		cp := s
		cp.Args = append([]string(nil), s.Args...)
		cp.Tools = append([]MCPTool(nil), s.Tools...)
		if s.Env != nil {
			cp.Env = make(map[string]string, len(s.Env))
			for k, v := range s.Env {
				cp.Env[k] = v
			}
		}
		out.MCP.Servers = append(out.MCP.Servers, cp)
	}
	out.MCP.PreRegistered = append([]PreRegisteredToggle(nil), d.MCP.PreRegistered...)
	return out
}

// FlowByID returns the flow with the given id, or nil.
func (d *Document) FlowByID(id string) *Flow {
	for i := range d.Flows {
		if d.Flows[i].ID == id {
			return &d.Flows[i]
		}
	}
	return nil
}

// DefaultFlow returns the flow flagged as default, or nil.
func (d *Document) DefaultFlow() *Flow {
	for i := range d.Flows {
		if d.Flows[i].IsDefault {
			return &d.Flows[i]
		}
	}
	return nil
}

// ActiveFlow resolves the flow applied to new chat turns. Resolution order:
// exact match on ActiveFlowID, the default flow, the first flow. Returns nil
// only for a document with zero flows, which Normalize never produces.
func (d *Document) ActiveFlow() *Flow {
	if f := d.FlowByID(d.ActiveFlowID); f != nil {
		return f
	}
	if f := d.DefaultFlow(); f != nil {
		return f
	}
	if len(d.Flows) > 0 {
		return &d.Flows[0]
	}
	return nil
}
