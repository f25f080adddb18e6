package settings

import (
	"encoding/json"
	"time"
)

// legacyProbe captures both the current and the pre-multi-flow document
// shapes. Versioned documents carry schemaVersion; pre-versioned ones are
// sniffed by key presence: a flat general/prompts pair with no flows array is
// the legacy single-settings schema.
type legacyProbe struct {
	SchemaVersion   int                        `json:"schemaVersion"`
	Flows           json.RawMessage            `json:"flows"`
	ActiveFlowID    string                     `json:"activeFlowId"`
	ModelParameters map[string]ModelParameters `json:"modelParameters"`
	MCP             *MCPSettings               `json:"mcp"`
	General         *GeneralSettings           `json:"general"`
	Prompts         map[string]string          `json:"prompts"`
}

// Normalize accepts a raw, possibly legacy or malformed settings document and
// returns one guaranteed to satisfy the document invariants: at least one
// flow, exactly one default, a resolvable activeFlowId and non-nil
// sub-objects. The second return reports whether the input was rewritten;
// callers persist the result when it was so each migration runs at most once
// per account. Normalizing its own output a second time returns it unchanged.
func Normalize(raw []byte) (*Document, bool) {
	if len(raw) == 0 {
		return NewDefaultDocument(), true
	}

	var probe legacyProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return NewDefaultDocument(), true
	}

	// Pass 1: legacy shape. Synthesize exactly one flow from the flat
	// general/prompts pair and make it the active default.
	if probe.Flows == nil && (probe.General != nil || probe.Prompts != nil) {
		doc := migrateLegacy(&probe)
		normalizeDocument(doc)
		return doc, true
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return NewDefaultDocument(), true
	}

	// Pass 5 precondition: without a flows array there is nothing to repair
	// incrementally, so substitute a brand-new default document.
	if doc.Flows == nil {
		return NewDefaultDocument(), true
	}

	changed := normalizeDocument(&doc)
	return &doc, changed
}

// migrateLegacy builds a single-flow document from the pre-multi-flow shape.
func migrateLegacy(probe *legacyProbe) *Document {
	now := time.Now().UnixMilli()

	general := DefaultGeneralSettings()
	if probe.General != nil {
		general = *probe.General
	}
	prompts := probe.Prompts
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	flow := Flow{
		ID:              NewFlowID(),
		Name:            "Default Flow",
		Description:     "Migrated from legacy settings",
		IsDefault:       true,
		Prompts:         prompts,
		GeneralSettings: general,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	doc := &Document{
		Flows:           []Flow{flow},
		ActiveFlowID:    flow.ID,
		ModelParameters: probe.ModelParameters,
	}
	if probe.MCP != nil {
		doc.MCP = *probe.MCP
	}
	return doc
}

// normalizeDocument runs the ordered repair passes in place and reports
// whether anything changed. Every pass is idempotent.
func normalizeDocument(doc *Document) bool {
	changed := false

	// Pass 2: exactly one default flow. A missing default gets a freshly
	// constructed one prepended; extra defaults after the first are demoted.
	if doc.DefaultFlow() == nil {
		doc.Flows = append([]Flow{NewDefaultFlow()}, doc.Flows...)
		changed = true
	} else {
		seen := false
		for i := range doc.Flows {
			if !doc.Flows[i].IsDefault {
				continue
			}
			if seen {
				doc.Flows[i].IsDefault = false
				changed = true
			}
			seen = true
		}
	}

	// Pass 3: activeFlowId must resolve to a member flow.
	if doc.FlowByID(doc.ActiveFlowID) == nil {
		if f := doc.DefaultFlow(); f != nil {
			doc.ActiveFlowID = f.ID
		} else {
			doc.ActiveFlowID = doc.Flows[0].ID
		}
		changed = true
	}

	// Pass 4: non-nil sub-objects and in-range settings so downstream code
	// never needs null-guards.
	if doc.ModelParameters == nil {
		doc.ModelParameters = map[string]ModelParameters{}
		changed = true
	}
	if doc.MCP.Servers == nil {
		doc.MCP.Servers = []MCPServer{}
		changed = true
	}
	if doc.MCP.PreRegistered == nil {
		doc.MCP.PreRegistered = []PreRegisteredToggle{}
		changed = true
	}
	for i := range doc.Flows {
		if doc.Flows[i].Prompts == nil {
			doc.Flows[i].Prompts = map[string]string{}
			changed = true
		}
		if clampGeneralSettings(&doc.Flows[i].GeneralSettings) {
			changed = true
		}
	}
	if doc.SchemaVersion != SchemaVersion {
		doc.SchemaVersion = SchemaVersion
		changed = true
	}

	return changed
}

func clampGeneralSettings(gs *GeneralSettings) bool {
	changed := false
	if v := clampInt(gs.MaxPlanIterations, MinPlanIterations, MaxPlanIterations); v != gs.MaxPlanIterations {
		gs.MaxPlanIterations = v
		changed = true
	}
	if v := clampInt(gs.MaxStepNum, MinStepNum, MaxStepNum); v != gs.MaxStepNum {
		gs.MaxStepNum = v
		changed = true
	}
	if v := clampInt(gs.MaxSearchResults, MinSearchResults, MaxSearchResults); v != gs.MaxSearchResults {
		gs.MaxSearchResults = v
		changed = true
	}
	if !validReportStyle(gs.ReportStyle) {
		gs.ReportStyle = ReportStyleAcademic
		changed = true
	}
	return changed
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func validReportStyle(style string) bool {
	for _, s := range ReportStyles {
		if s == style {
			return true
		}
	}
	return false
}
