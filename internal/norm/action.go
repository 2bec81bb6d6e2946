package norm

import (
	"strings"

	"github.com/tgpoker/tablesync/internal/state"
)

// MapAllowedActions unifies the two historical "allowed actions" wire shapes
// into one ordered list:
//
//	(a) a list of action descriptors, whose action-type field has drifted
//	    across message versions ("action", "type", "action_type");
//	(b) a legacy boolean-flag object (can_fold, can_call, ...).
//
// For shape (b) the output order is fixed (fold, check, call, bet, raise,
// all-in, ready) regardless of flag order, so downstream UI ordering is
// stable. Absent input yields an empty list, not an error.
func MapAllowedActions(v any) []state.LegalAction {
	switch x := v.(type) {
	case []any:
		return mapActionDescriptors(x)
	case map[string]any:
		if _, ok := field(x, "action", "type", "action_type"); ok {
			// A bare descriptor outside a list still counts as shape (a).
			return mapActionDescriptors([]any{x})
		}
		return mapActionFlags(x)
	}
	return []state.LegalAction{}
}

func mapActionDescriptors(raw []any) []state.LegalAction {
	out := make([]state.LegalAction, 0, len(raw))
	for _, entry := range raw {
		m, ok := asMap(entry)
		if !ok {
			continue
		}
		name, ok := stringField(m, "action", "type", "action_type")
		if !ok {
			continue
		}
		a := state.LegalAction{Action: canonicalActionName(name)}
		a.MinAmount, _ = int64Field(m, "min_amount", "min")
		a.MaxAmount, _ = int64Field(m, "max_amount", "max")
		a.CallAmount, _ = int64Field(m, "call_amount", "amount")
		a.MinRaiseAmount, _ = int64Field(m, "min_raise_amount", "min_raise_to")
		out = append(out, a)
	}
	return out
}

func mapActionFlags(raw map[string]any) []state.LegalAction {
	out := []state.LegalAction{}

	if boolField(raw, "can_fold") {
		out = append(out, state.LegalAction{Action: state.ActionFold})
	}
	if boolField(raw, "can_check") {
		out = append(out, state.LegalAction{Action: state.ActionCheck})
	}
	if boolField(raw, "can_call") {
		a := state.LegalAction{Action: state.ActionCall}
		a.CallAmount, _ = int64Field(raw, "call_amount")
		out = append(out, a)
	}
	minRaise, hasMinRaise := int64Field(raw, "min_raise_to")
	maxRaise, _ := int64Field(raw, "max_raise_to")
	if boolField(raw, "can_bet") {
		out = append(out, state.LegalAction{Action: state.ActionBet, MinAmount: minRaise, MaxAmount: maxRaise})
	} else if boolField(raw, "can_raise") || hasMinRaise {
		out = append(out, state.LegalAction{Action: state.ActionRaise, MinRaiseAmount: minRaise, MaxAmount: maxRaise})
	}
	if boolField(raw, "can_all_in") {
		a := state.LegalAction{Action: state.ActionAllIn}
		a.MaxAmount, _ = int64Field(raw, "all_in_amount")
		out = append(out, a)
	}
	if boolField(raw, "ready") {
		out = append(out, state.LegalAction{Action: state.ActionReady})
	}
	return out
}

func canonicalActionName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "allin", "all-in", "all in":
		return state.ActionAllIn
	}
	return name
}
