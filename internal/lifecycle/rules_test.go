package lifecycle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/authz"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
)

// expectedOutcome restates the transition table as plain conditions.
func expectedOutcome(intent Intent, s State, role authz.Role) string {
	admin := role == authz.RoleAdmin
	undecided := s.Status == domain.StatusPending && !s.Approved.IsSet() && !s.HasPR
	switch intent {
	case IntentCreate, IntentPlan, IntentApply:
		return ""
	case IntentUpdate:
		if s.Archived || (!admin && s.Status != domain.StatusPending) {
			return apperrors.CodeInvalidRequest
		}
		return ""
	case IntentApprove, IntentDecline:
		if !admin {
			return apperrors.CodeForbidden
		}
		if !undecided {
			return apperrors.CodeInvalidRequest
		}
		return ""
	case IntentRestore:
		if !admin {
			return apperrors.CodeForbidden
		}
		if !s.Archived || s.Status != domain.StatusApplied {
			return apperrors.CodeInvalidRequest
		}
		return ""
	case IntentAdminRestore:
		if !admin {
			return apperrors.CodeForbidden
		}
		if !s.Archived || (s.Status != domain.StatusApplied && s.Status != domain.StatusPRSuccess) {
			return apperrors.CodeInvalidRequest
		}
		return ""
	case IntentDelete:
		if !admin {
			return apperrors.CodeForbidden
		}
		if s.Archived {
			return apperrors.CodeInvalidRequest
		}
		return ""
	}
	return "unknown"
}

func TestCheck_EveryCombination(t *testing.T) {
	roles := []authz.Role{authz.RoleTechnicalContact, authz.RoleProductOwner, authz.RoleAdmin}
	approvals := []domain.Approval{domain.ApprovalUnset, domain.ApprovalGranted, domain.ApprovalDeclined}

	cases := 0
	for _, intent := range AllIntents {
		for _, status := range domain.AllStatuses {
			for _, archived := range []bool{false, true} {
				for _, approved := range approvals {
					for _, hasPR := range []bool{false, true} {
						for _, role := range roles {
							s := State{Status: status, Archived: archived, Approved: approved, HasPR: hasPR}
							want := expectedOutcome(intent, s, role)
							got := apperrors.CodeOf(Check(intent, s, role))
							assert.Equal(t, want, got, "%s", fmt.Sprintf("%s %+v %s", intent, s, role))
							cases++
						}
					}
				}
			}
		}
	}
	assert.Equal(t, len(AllIntents)*len(domain.AllStatuses)*2*3*2*3, cases)
}

func TestCheck_UnknownIntent(t *testing.T) {
	err := Check(Intent("teleport"), State{}, authz.RoleAdmin)
	assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.CodeOf(err))
}

func TestRules_CoverEveryIntent(t *testing.T) {
	for _, intent := range AllIntents {
		rule, ok := Rules[intent]
		if assert.True(t, ok, "no rule for %s", intent) {
			assert.NotNil(t, rule.Allowed, "rule for %s has no guard", intent)
		}
	}
	assert.Len(t, Rules, len(AllIntents))
}

func TestStateOf(t *testing.T) {
	pr := 3
	r := &domain.RealmRequest{Status: domain.StatusPRSuccess, Archived: true, Approved: domain.ApprovalGranted, PRNumber: &pr}
	assert.Equal(t, State{Status: domain.StatusPRSuccess, Archived: true, Approved: domain.ApprovalGranted, HasPR: true}, StateOf(r))
}
