// Package lifecycle drives a realm request through creation, approval,
// provisioning, archival and restoration.
//
// Every operation follows the same shape: re-read the record, classify the
// actor's role, consult the transition table, call external gateways one
// after another, persist with a version predicate, audit, then notify.
package lifecycle

import (
	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/authz"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
)

// Intent is a requested transition.
type Intent string

const (
	IntentCreate       Intent = "create"
	IntentUpdate       Intent = "update"
	IntentApprove      Intent = "approve"
	IntentDecline      Intent = "decline"
	IntentRestore      Intent = "restore"
	IntentAdminRestore Intent = "admin-restore"
	IntentDelete       Intent = "delete"
	IntentPlan         Intent = "plan"
	IntentApply        Intent = "apply"
)

// AllIntents lists every intent in the transition table.
var AllIntents = []Intent{
	IntentCreate, IntentUpdate, IntentApprove, IntentDecline, IntentRestore,
	IntentAdminRestore, IntentDelete, IntentPlan, IntentApply,
}

// State is the part of a record the transition table looks at.
type State struct {
	Status   domain.Status
	Archived bool
	Approved domain.Approval
	HasPR    bool
}

// StateOf extracts the transition-relevant state of r.
func StateOf(r *domain.RealmRequest) State {
	return State{Status: r.Status, Archived: r.Archived, Approved: r.Approved, HasPR: r.HasPR()}
}

// Rule gates one intent.
type Rule struct {
	// AdminOnly rejects every non-admin role as forbidden.
	AdminOnly bool
	// Allowed reports whether the intent is legal in s for role.
	Allowed func(s State, role authz.Role) bool
	// Reason explains a rejection to the caller.
	Reason string
}

func always(State, authz.Role) bool { return true }

func undecided(s State, _ authz.Role) bool {
	return s.Status == domain.StatusPending && !s.Approved.IsSet() && !s.HasPR
}

// Rules is the transition table. Plan and apply results come from the CI
// pipeline and are accepted in every state so that re-runs converge.
var Rules = map[Intent]Rule{
	IntentCreate: {Allowed: always},
	IntentUpdate: {
		Allowed: func(s State, role authz.Role) bool {
			if s.Archived {
				return false
			}
			return role == authz.RoleAdmin || s.Status == domain.StatusPending
		},
		Reason: "only pending, active realm requests can be edited",
	},
	IntentApprove: {
		AdminOnly: true,
		Allowed:   undecided,
		Reason:    "realm request is not awaiting a decision",
	},
	IntentDecline: {
		AdminOnly: true,
		Allowed:   undecided,
		Reason:    "realm request is not awaiting a decision",
	},
	IntentRestore: {
		AdminOnly: true,
		Allowed: func(s State, _ authz.Role) bool {
			return s.Archived && s.Status == domain.StatusApplied
		},
		Reason: "only archived, applied realms can be restored",
	},
	IntentAdminRestore: {
		AdminOnly: true,
		Allowed: func(s State, _ authz.Role) bool {
			return s.Archived && (s.Status == domain.StatusApplied || s.Status == domain.StatusPRSuccess)
		},
		Reason: "only archived realms that were applied or merged can be restored",
	},
	IntentDelete: {
		AdminOnly: true,
		Allowed: func(s State, _ authz.Role) bool {
			return !s.Archived
		},
		Reason: "realm is already archived",
	},
	IntentPlan:  {Allowed: always},
	IntentApply: {Allowed: always},
}

// Check returns nil when role may perform intent in s, a forbidden error
// for a role mismatch, and an invalid-request error for an illegal state.
func Check(intent Intent, s State, role authz.Role) error {
	rule, ok := Rules[intent]
	if !ok {
		return apperrors.ErrIllegalTransition(string(intent), "unknown intent")
	}
	if rule.AdminOnly && role != authz.RoleAdmin {
		return apperrors.ErrForbiddenf(string(intent))
	}
	if !rule.Allowed(s, role) {
		return apperrors.ErrIllegalTransition(string(intent), rule.Reason)
	}
	return nil
}
