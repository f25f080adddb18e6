package flowstore

import (
	"time"

	"deepscout/pkg/settings"
)

// FlowUpdate carries the mutable flow fields for UpdateFlow. Nil fields are
// left untouched.
type FlowUpdate struct {
	Name        *string
	Description *string
}

// CreateFlow allocates a new flow copied from the flow with id basisID (the
// active flow when basisID is empty), appends it and makes it active. New
// flows start from a known-good baseline rather than empty state.
func (s *Store) CreateFlow(name, basisID string) settings.Flow {
	var created settings.Flow
	s.mutate("createFlow", func(doc *settings.Document) bool {
		basis := doc.FlowByID(basisID)
		if basis == nil {
			basis = doc.ActiveFlow()
		}

		now := time.Now().UnixMilli()
		created = settings.Flow{
			ID:              settings.NewFlowID(),
			Name:            name,
			IsDefault:       false,
			Prompts:         settings.DefaultPrompts(),
			GeneralSettings: settings.DefaultGeneralSettings(),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if basis != nil {
			copied := basis.Clone()
			created.Prompts = copied.Prompts
			created.GeneralSettings = copied.GeneralSettings
		}

		doc.Flows = append(doc.Flows, created)
		doc.ActiveFlowID = created.ID
		return true
	})
	return created
}

// UpdateFlow merges the given fields into the matching flow. An unknown id is
// a benign race (flow deleted elsewhere) and is silently ignored.
func (s *Store) UpdateFlow(id string, upd FlowUpdate) {
	s.mutate("updateFlow", func(doc *settings.Document) bool {
		flow := doc.FlowByID(id)
		if flow == nil {
			return false
		}
		if upd.Name != nil {
			flow.Name = *upd.Name
		}
		if upd.Description != nil {
			flow.Description = *upd.Description
		}
		flow.UpdatedAt = time.Now().UnixMilli()
		return true
	})
}

// DeleteFlow removes the flow with the given id. The default flow cannot be
// deleted. Deleting the active flow falls back to the default flow, else the
// first remaining flow, else a freshly synthesized default; the registry
// never ends up with zero flows or a dangling active id.
func (s *Store) DeleteFlow(id string) {
	s.mutate("deleteFlow", func(doc *settings.Document) bool {
		target := doc.FlowByID(id)
		if target == nil {
			return false
		}
		if target.IsDefault {
			s.logger.Warn("refusing to delete the default flow", "flow", id)
			return false
		}

		kept := doc.Flows[:0]
		for _, f := range doc.Flows {
			if f.ID != id {
				kept = append(kept, f)
			}
		}
		doc.Flows = kept

		if len(doc.Flows) == 0 {
			fresh := settings.NewDefaultFlow()
			doc.Flows = []settings.Flow{fresh}
		}
		if doc.ActiveFlowID == id {
			if def := doc.DefaultFlow(); def != nil {
				doc.ActiveFlowID = def.ID
			} else {
				doc.ActiveFlowID = doc.Flows[0].ID
			}
		}
		return true
	})
}

// SetActiveFlow switches the active flow. An unknown id is caller error and
// is ignored with a warning rather than repaired.
func (s *Store) SetActiveFlow(id string) {
	s.mutate("setActiveFlow", func(doc *settings.Document) bool {
		if doc.FlowByID(id) == nil {
			s.logger.Warn("setActiveFlow: unknown flow", "flow", id)
			return false
		}
		if doc.ActiveFlowID == id {
			return false
		}
		doc.ActiveFlowID = id
		return true
	})
}

// ActiveFlow returns a copy of the flow applied to new chat turns. It never
// fails: an unresolvable active id falls back to the default flow, then the
// first flow, then a freshly synthesized default.
func (s *Store) ActiveFlow() settings.Flow {
	doc := s.Snapshot()
	if doc != nil {
		if f := doc.ActiveFlow(); f != nil {
			return f.Clone()
		}
	}
	return settings.NewDefaultFlow()
}

// Flows returns a copy of the flow collection.
func (s *Store) Flows() []settings.Flow {
	doc := s.Snapshot()
	if doc == nil {
		return nil
	}
	out := make([]settings.Flow, 0, len(doc.Flows))
	for i := range doc.Flows {
		out = append(out, doc.Flows[i].Clone())
	}
	return out
}

// ChatConfig builds the chat-turn projection from the current document.
func (s *Store) ChatConfig() settings.ChatConfig {
	doc := s.Snapshot()
	if doc == nil {
		doc = &settings.Document{}
	}
	return settings.BuildChatConfig(doc)
}

// mutateFlow applies fn to the flow with the given id, defaulting to the
// active flow when the id is empty. Unknown ids no-op.
func (s *Store) mutateFlow(op, flowID string, fn func(flow *settings.Flow)) {
	s.mutate(op, func(doc *settings.Document) bool {
		var flow *settings.Flow
		if flowID == "" {
			flow = doc.ActiveFlow()
		} else {
			flow = doc.FlowByID(flowID)
		}
		if flow == nil {
			return false
		}
		fn(flow)
		flow.UpdatedAt = time.Now().UnixMilli()
		return true
	})
}

// SetPrompt overrides one agent prompt. An empty flowID targets the active flow.
func (s *Store) SetPrompt(flowID, role, prompt string) {
	s.mutateFlow("setPrompt", flowID, func(flow *settings.Flow) {
		flow.Prompts[role] = prompt
	})
}

// ResetPrompt restores one agent prompt to its built-in template.
func (s *Store) ResetPrompt(flowID, role string) {
	s.mutateFlow("resetPrompt", flowID, func(flow *settings.Flow) {
		flow.Prompts[role] = settings.DefaultPrompt(role)
	})
}

// ResetAllPrompts restores every agent prompt to the built-in templates.
func (s *Store) ResetAllPrompts(flowID string) {
	s.mutateFlow("resetAllPrompts", flowID, func(flow *settings.Flow) {
		flow.Prompts = settings.DefaultPrompts()
	})
}

// SetAutoAcceptedPlan toggles automatic plan acceptance.
func (s *Store) SetAutoAcceptedPlan(flowID string, v bool) {
	s.mutateFlow("setAutoAcceptedPlan", flowID, func(flow *settings.Flow) {
		flow.GeneralSettings.AutoAcceptedPlan = v
	})
}

// SetEnableDeepThinking toggles deep-thinking mode.
func (s *Store) SetEnableDeepThinking(flowID string, v bool) {
	s.mutateFlow("setEnableDeepThinking", flowID, func(flow *settings.Flow) {
		flow.GeneralSettings.EnableDeepThinking = v
	})
}

// SetEnableBackgroundInvestigation toggles background investigation.
func (s *Store) SetEnableBackgroundInvestigation(flowID string, v bool) {
	s.mutateFlow("setEnableBackgroundInvestigation", flowID, func(flow *settings.Flow) {
		flow.GeneralSettings.EnableBackgroundInvestigation = v
	})
}

// SetMaxPlanIterations sets the plan iteration bound, clamped to its range.
func (s *Store) SetMaxPlanIterations(flowID string, v int) {
	s.mutateFlow("setMaxPlanIterations", flowID, func(flow *settings.Flow) {
		flow.GeneralSettings.MaxPlanIterations = clamp(v, settings.MinPlanIterations, settings.MaxPlanIterations)
	})
}

// SetMaxStepNum sets the plan step bound, clamped to its range.
func (s *Store) SetMaxStepNum(flowID string, v int) {
	s.mutateFlow("setMaxStepNum", flowID, func(flow *settings.Flow) {
		flow.GeneralSettings.MaxStepNum = clamp(v, settings.MinStepNum, settings.MaxStepNum)
	})
}

// SetMaxSearchResults sets the search result bound, clamped to its range.
func (s *Store) SetMaxSearchResults(flowID string, v int) {
	s.mutateFlow("setMaxSearchResults", flowID, func(flow *settings.Flow) {
		flow.GeneralSettings.MaxSearchResults = clamp(v, settings.MinSearchResults, settings.MaxSearchResults)
	})
}

// SetReportStyle sets the report style. Unknown styles are ignored.
func (s *Store) SetReportStyle(flowID, style string) {
	valid := false
	for _, st := range settings.ReportStyles {
		if st == style {
			valid = true
			break
		}
	}
	if !valid {
		s.logger.Warn("setReportStyle: unknown style", "style", style)
		return
	}
	s.mutateFlow("setReportStyle", flowID, func(flow *settings.Flow) {
		flow.GeneralSettings.ReportStyle = style
	})
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
