// Package domain provides the domain model for Realm Steward.
//
// Stores and gateways accept and return these types; persistence and
// transport representations stay inside their own packages.
package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RealmRequest is the aggregate root: one team's request for a realm
// replicated across rollout environments.
type RealmRequest struct {
	ID              int64         `json:"id"`
	Realm           string        `json:"realm"`
	Purpose         string        `json:"purpose"`
	ProductName     string        `json:"productName"`
	PrimaryEndUsers []string      `json:"primaryEndUsers"`
	Environments    []Environment `json:"environments"`

	ProductOwnerEmail                string `json:"productOwnerEmail"`
	ProductOwnerIdirUserID           string `json:"productOwnerIdirUserId"`
	TechnicalContactEmail            string `json:"technicalContactEmail"`
	TechnicalContactIdirUserID       string `json:"technicalContactIdirUserId"`
	SecondTechnicalContactEmail      string `json:"secondTechnicalContactEmail,omitempty"`
	SecondTechnicalContactIdirUserID string `json:"secondTechnicalContactIdirUserId,omitempty"`

	Ministry string `json:"ministry"`
	Division string `json:"division"`
	Branch   string `json:"branch"`

	// Admin-only operational fields.
	RcChannel        string `json:"rcChannel,omitempty"`
	RcChannelOwnedBy string `json:"rcChannelOwnedBy,omitempty"`
	MaterialToSend   string `json:"materialToSend,omitempty"`

	Approved      Approval `json:"approved"`
	Status        Status   `json:"status"`
	Archived      bool     `json:"archived"`
	PRNumber      *int     `json:"prNumber,omitempty"`
	LastUpdatedBy string   `json:"lastUpdatedBy,omitempty"`

	// Version increments on every persisted write. Updates are conditional on it.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy, used as the start-of-operation snapshot.
func (r *RealmRequest) Clone() *RealmRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.PrimaryEndUsers = append([]string(nil), r.PrimaryEndUsers...)
	c.Environments = append([]Environment(nil), r.Environments...)
	if r.PRNumber != nil {
		n := *r.PRNumber
		c.PRNumber = &n
	}
	return &c
}

// IsProductOwner reports whether idirUserID matches the product owner (case-insensitive).
func (r *RealmRequest) IsProductOwner(idirUserID string) bool {
	return idirUserID != "" && strings.EqualFold(r.ProductOwnerIdirUserID, idirUserID)
}

// IsContact reports whether idirUserID is the product owner or a technical contact.
func (r *RealmRequest) IsContact(idirUserID string) bool {
	if idirUserID == "" {
		return false
	}
	return r.IsProductOwner(idirUserID) ||
		strings.EqualFold(r.TechnicalContactIdirUserID, idirUserID) ||
		strings.EqualFold(r.SecondTechnicalContactIdirUserID, idirUserID)
}

// HasPR reports whether a provisioning pull request was opened.
func (r *RealmRequest) HasPR() bool {
	return r.PRNumber != nil
}

// Status is the provisioning lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPRSuccess   Status = "prSuccess"
	StatusPRFailed    Status = "prFailed"
	StatusPlanned     Status = "planned"
	StatusPlanFailed  Status = "planFailed"
	StatusApplied     Status = "applied"
	StatusApplyFailed Status = "applyFailed"
)

// AllStatuses lists every Status in lifecycle order.
var AllStatuses = []Status{
	StatusPending, StatusPRSuccess, StatusPRFailed,
	StatusPlanned, StatusPlanFailed, StatusApplied, StatusApplyFailed,
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Environment is a rollout environment.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvTest Environment = "test"
	EnvProd Environment = "prod"
)

// AllEnvironments is the default target set for new realms.
var AllEnvironments = []Environment{EnvDev, EnvTest, EnvProd}

// IsValid reports whether e is a known environment.
func (e Environment) IsValid() bool {
	switch e {
	case EnvDev, EnvTest, EnvProd:
		return true
	}
	return false
}

// Approval is the tri-state admin decision. It encodes to JSON null/true/false.
type Approval int8

const (
	ApprovalUnset Approval = iota
	ApprovalGranted
	ApprovalDeclined
)

// IsSet reports whether a decision has been recorded.
func (a Approval) IsSet() bool { return a != ApprovalUnset }

// Bool returns the nullable boolean form used in storage.
func (a Approval) Bool() *bool {
	switch a {
	case ApprovalGranted:
		v := true
		return &v
	case ApprovalDeclined:
		v := false
		return &v
	}
	return nil
}

// ApprovalFromBool converts the nullable boolean form.
func ApprovalFromBool(b *bool) Approval {
	switch {
	case b == nil:
		return ApprovalUnset
	case *b:
		return ApprovalGranted
	default:
		return ApprovalDeclined
	}
}

func (a Approval) String() string {
	switch a {
	case ApprovalGranted:
		return "true"
	case ApprovalDeclined:
		return "false"
	}
	return "unset"
}

// MarshalJSON implements json.Marshaler.
func (a Approval) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Bool())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Approval) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("approved must be true, false or null: %w", err)
	}
	*a = ApprovalFromBool(b)
	return nil
}

var realmNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidRealmName reports whether name starts with a letter and contains only
// letters, digits, underscores and hyphens.
func ValidRealmName(name string) bool {
	return realmNamePattern.MatchString(name)
}
