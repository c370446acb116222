package authz

import (
	"realmsteward.io/steward/internal/domain"
)

// RealmPatch is an update payload. A nil field is left unchanged. Keys that
// have no field here (realm, environments, status, unknown keys) are dropped
// by the JSON decoder.
type RealmPatch struct {
	Ministry                         *string `json:"ministry,omitempty"`
	Division                         *string `json:"division,omitempty"`
	Branch                           *string `json:"branch,omitempty"`
	TechnicalContactEmail            *string `json:"technicalContactEmail,omitempty" validate:"omitempty,email"`
	TechnicalContactIdirUserID       *string `json:"technicalContactIdirUserId,omitempty"`
	SecondTechnicalContactEmail      *string `json:"secondTechnicalContactEmail,omitempty" validate:"omitempty,email"`
	SecondTechnicalContactIdirUserID *string `json:"secondTechnicalContactIdirUserId,omitempty"`

	ProductName            *string   `json:"productName,omitempty" validate:"omitempty,max=200"`
	PrimaryEndUsers        *[]string `json:"primaryEndUsers,omitempty"`
	ProductOwnerEmail      *string   `json:"productOwnerEmail,omitempty" validate:"omitempty,email"`
	ProductOwnerIdirUserID *string   `json:"productOwnerIdirUserId,omitempty"`

	RcChannel        *string `json:"rcChannel,omitempty"`
	RcChannelOwnedBy *string `json:"rcChannelOwnedBy,omitempty"`
	MaterialToSend   *string `json:"materialToSend,omitempty"`
	Approved         *bool   `json:"approved,omitempty"`
}

// Filter clears every field role may not change. It never fails.
func Filter(role Role, p RealmPatch) RealmPatch {
	return p.mask(AllowedFields(role))
}

func (p RealmPatch) mask(s FieldSet) RealmPatch {
	if !s.Ministry {
		p.Ministry = nil
	}
	if !s.Division {
		p.Division = nil
	}
	if !s.Branch {
		p.Branch = nil
	}
	if !s.TechnicalContactEmail {
		p.TechnicalContactEmail = nil
	}
	if !s.TechnicalContactIdirUserID {
		p.TechnicalContactIdirUserID = nil
	}
	if !s.SecondTechnicalContactEmail {
		p.SecondTechnicalContactEmail = nil
	}
	if !s.SecondTechnicalContactIdirUserID {
		p.SecondTechnicalContactIdirUserID = nil
	}
	if !s.ProductName {
		p.ProductName = nil
	}
	if !s.PrimaryEndUsers {
		p.PrimaryEndUsers = nil
	}
	if !s.ProductOwnerEmail {
		p.ProductOwnerEmail = nil
	}
	if !s.ProductOwnerIdirUserID {
		p.ProductOwnerIdirUserID = nil
	}
	if !s.RcChannel {
		p.RcChannel = nil
	}
	if !s.RcChannelOwnedBy {
		p.RcChannelOwnedBy = nil
	}
	if !s.MaterialToSend {
		p.MaterialToSend = nil
	}
	if !s.Approved {
		p.Approved = nil
	}
	return p
}

// Touched returns the set of fields the patch sets.
func (p RealmPatch) Touched() FieldSet {
	return FieldSet{
		Ministry:                         p.Ministry != nil,
		Division:                         p.Division != nil,
		Branch:                           p.Branch != nil,
		TechnicalContactEmail:            p.TechnicalContactEmail != nil,
		TechnicalContactIdirUserID:       p.TechnicalContactIdirUserID != nil,
		SecondTechnicalContactEmail:      p.SecondTechnicalContactEmail != nil,
		SecondTechnicalContactIdirUserID: p.SecondTechnicalContactIdirUserID != nil,
		ProductName:                      p.ProductName != nil,
		PrimaryEndUsers:                  p.PrimaryEndUsers != nil,
		ProductOwnerEmail:                p.ProductOwnerEmail != nil,
		ProductOwnerIdirUserID:           p.ProductOwnerIdirUserID != nil,
		RcChannel:                        p.RcChannel != nil,
		RcChannelOwnedBy:                 p.RcChannelOwnedBy != nil,
		MaterialToSend:                   p.MaterialToSend != nil,
		Approved:                         p.Approved != nil,
	}
}

// Touches reports whether the patch sets f.
func (p RealmPatch) Touches(f domain.Field) bool {
	return p.Touched().Contains(f)
}

// IsEmpty reports whether the patch sets nothing.
func (p RealmPatch) IsEmpty() bool {
	return p.Touched() == FieldSet{}
}

// ApplyTo writes every set field onto r.
func (p RealmPatch) ApplyTo(r *domain.RealmRequest) {
	setString(&r.Ministry, p.Ministry)
	setString(&r.Division, p.Division)
	setString(&r.Branch, p.Branch)
	setString(&r.TechnicalContactEmail, p.TechnicalContactEmail)
	setString(&r.TechnicalContactIdirUserID, p.TechnicalContactIdirUserID)
	setString(&r.SecondTechnicalContactEmail, p.SecondTechnicalContactEmail)
	setString(&r.SecondTechnicalContactIdirUserID, p.SecondTechnicalContactIdirUserID)
	setString(&r.ProductName, p.ProductName)
	if p.PrimaryEndUsers != nil {
		r.PrimaryEndUsers = append([]string(nil), (*p.PrimaryEndUsers)...)
	}
	setString(&r.ProductOwnerEmail, p.ProductOwnerEmail)
	setString(&r.ProductOwnerIdirUserID, p.ProductOwnerIdirUserID)
	setString(&r.RcChannel, p.RcChannel)
	setString(&r.RcChannelOwnedBy, p.RcChannelOwnedBy)
	setString(&r.MaterialToSend, p.MaterialToSend)
	if p.Approved != nil {
		r.Approved = domain.ApprovalFromBool(p.Approved)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
