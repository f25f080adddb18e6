package settings

import (
	"time"

	"github.com/google/uuid"
)

// Default prompt templates per agent role. Placeholders are interpolated by
// the research-agent backend, not here.
const (
	defaultCoordinatorPrompt = `You are the coordinator of a research team. The current time is {{ CURRENT_TIME }}.
Greet the user, classify the request, and hand research questions to the planner.
Respond in the user's locale ({{ locale }}). Politely decline requests outside research assistance.`

	defaultPlannerPrompt = `You are a research planner. The current time is {{ CURRENT_TIME }}.
Break the research question into at most {{ max_step_num }} concrete steps.
For each step decide whether it needs web research or local processing, and
state what information the step must produce. Iterate on the plan when the
gathered context is insufficient.`

	defaultResearcherPrompt = `You are a researcher. The current time is {{ CURRENT_TIME }}.
Use the available search and crawling tools to gather information for the
current step. Cite every source you rely on and never fabricate citations.
Return at most {{ max_search_results }} sources per query.`

	defaultCoderPrompt = `You are a coder on a research team. The current time is {{ CURRENT_TIME }}.
Solve the current step with Python. Prefer simple, verifiable scripts, print
intermediate results, and report the final values with their units.`

	defaultReporterPrompt = `You are a reporter. The current time is {{ CURRENT_TIME }}.
Write the final report in the {{ report_style }} style from the gathered
findings only. Structure it with headings, keep claims traceable to sources,
and list all references at the end. Respond in {{ locale }}.`
)

// DefaultPrompts returns a fresh copy of the built-in prompt templates.
func DefaultPrompts() map[string]string {
	return map[string]string{
		RoleCoordinator: defaultCoordinatorPrompt,
		RolePlanner:     defaultPlannerPrompt,
		RoleResearcher:  defaultResearcherPrompt,
		RoleCoder:       defaultCoderPrompt,
		RoleReporter:    defaultReporterPrompt,
	}
}

// DefaultPrompt returns the built-in template for a single role, or the empty
// string for an unknown role.
func DefaultPrompt(role string) string {
	return DefaultPrompts()[role]
}

// DefaultGeneralSettings returns the out-of-the-box general settings.
func DefaultGeneralSettings() GeneralSettings {
	return GeneralSettings{
		AutoAcceptedPlan:              false,
		EnableDeepThinking:            false,
		EnableBackgroundInvestigation: false,
		MaxPlanIterations:             1,
		MaxStepNum:                    3,
		MaxSearchResults:              3,
		ReportStyle:                   ReportStyleAcademic,
	}
}

// DefaultModelParameters returns the out-of-the-box per-model parameters.
func DefaultModelParameters() ModelParameters {
	return ModelParameters{
		Temperature:      0.7,
		MaxTokens:        2048,
		TopP:             0.9,
		FrequencyPenalty: 0,
	}
}

// NewFlowID allocates an opaque flow identifier.
func NewFlowID() string {
	return uuid.NewString()
}

// NewDefaultFlow synthesizes a fresh default flow.
func NewDefaultFlow() Flow {
	now := time.Now().UnixMilli()
	return Flow{
		ID:              NewFlowID(),
		Name:            "Default Flow",
		Description:     "Built-in default flow",
		IsDefault:       true,
		Prompts:         DefaultPrompts(),
		GeneralSettings: DefaultGeneralSettings(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewDefaultDocument returns a brand-new settings document: one default flow,
// no custom MCP servers, no model parameter overrides.
func NewDefaultDocument() *Document {
	flow := NewDefaultFlow()
	return &Document{
		SchemaVersion:   SchemaVersion,
		Flows:           []Flow{flow},
		ActiveFlowID:    flow.ID,
		ModelParameters: map[string]ModelParameters{},
		MCP: MCPSettings{
			Servers:       []MCPServer{},
			PreRegistered: []PreRegisteredToggle{},
		},
	}
}
