package domain

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// EventCode is the enumerated outcome of a transition attempt.
type EventCode string

const (
	EventCreateSuccess EventCode = "create-success"
	EventCreateFailed  EventCode = "create-failed"

	EventUpdateSuccess EventCode = "update-success"
	EventUpdateFailed  EventCode = "update-failed"

	EventApproveSuccess EventCode = "approve-success"
	EventRejectSuccess  EventCode = "reject-success"
	EventRejectFailed   EventCode = "reject-failed"

	EventRestoreSuccess EventCode = "restore-success"
	EventRestoreFailed  EventCode = "restore-failed"

	EventDeleteSuccess EventCode = "delete-success"
	EventDeleteFailed  EventCode = "delete-failed"

	// Pipeline callback outcomes.
	EventPlanSuccess            EventCode = "plan-success"
	EventPlanFailed             EventCode = "plan-failed"
	EventApplySuccess           EventCode = "apply-success"
	EventApplyFailed            EventCode = "apply-failed"
	EventPipelineUpdateFailed   EventCode = "pipeline-update-failed"
	EventRealmAdminGrantFailed  EventCode = "realm-admin-grant-failed"
	EventRealmAdminRevokeFailed EventCode = "realm-admin-revoke-failed"
)

// AuditEvent is an append-only record of one transition attempt.
type AuditEvent struct {
	ID int64 `json:"id"`
	// RealmID is nil when the failure happened before a record existed.
	RealmID *int64    `json:"realmId"`
	Code    EventCode `json:"eventCode"`
	// ActorID is nil for pipeline-triggered events.
	ActorID   *string       `json:"actorId"`
	Changes   []FieldChange `json:"changes,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// FieldChange is one field's old and new value.
type FieldChange struct {
	Field Field       `json:"field"`
	Old   interface{} `json:"old"`
	New   interface{} `json:"new"`
}

var diffOpts = cmp.Options{cmpopts.EquateEmpty()}

// Diff reports every audited field whose value differs between before and
// after. A nil before (creation) reports every non-empty field of after.
func Diff(before, after *RealmRequest) []FieldChange {
	if after == nil {
		return nil
	}
	var changes []FieldChange
	for _, a := range fieldAccessors {
		newVal := a.get(after)
		var oldVal interface{}
		if before != nil {
			oldVal = a.get(before)
		} else {
			oldVal = zeroOf(newVal)
		}
		if cmp.Equal(oldVal, newVal, diffOpts) {
			continue
		}
		if before == nil {
			oldVal = nil
		}
		changes = append(changes, FieldChange{Field: a.field, Old: oldVal, New: newVal})
	}
	return changes
}

func zeroOf(v interface{}) interface{} {
	switch v.(type) {
	case string:
		return ""
	case bool:
		return false
	case Status:
		return Status("")
	case []string:
		return []string(nil)
	case []Environment:
		return []Environment(nil)
	case *bool:
		return (*bool)(nil)
	case *int:
		return (*int)(nil)
	}
	return nil
}
