package authz

import "realmsteward.io/steward/internal/domain"

// FieldSet is a permission mask with one flag per field mutable after creation.
// Its field names mirror RealmPatch.
type FieldSet struct {
	Ministry                         bool
	Division                         bool
	Branch                           bool
	TechnicalContactEmail            bool
	TechnicalContactIdirUserID       bool
	SecondTechnicalContactEmail      bool
	SecondTechnicalContactIdirUserID bool

	ProductName            bool
	PrimaryEndUsers        bool
	ProductOwnerEmail      bool
	ProductOwnerIdirUserID bool

	RcChannel        bool
	RcChannelOwnedBy bool
	MaterialToSend   bool
	Approved         bool
}

var technicalContactFields = FieldSet{
	Ministry:                         true,
	Division:                         true,
	Branch:                           true,
	TechnicalContactEmail:            true,
	TechnicalContactIdirUserID:       true,
	SecondTechnicalContactEmail:      true,
	SecondTechnicalContactIdirUserID: true,
}

var productOwnerFields = technicalContactFields.union(FieldSet{
	ProductName:            true,
	PrimaryEndUsers:        true,
	ProductOwnerEmail:      true,
	ProductOwnerIdirUserID: true,
})

var adminFields = productOwnerFields.union(FieldSet{
	RcChannel:        true,
	RcChannelOwnedBy: true,
	MaterialToSend:   true,
	Approved:         true,
})

// AllowedFields returns the fields role may change.
func AllowedFields(role Role) FieldSet {
	switch role {
	case RoleAdmin:
		return adminFields
	case RoleProductOwner:
		return productOwnerFields
	default:
		return technicalContactFields
	}
}

func (s FieldSet) union(o FieldSet) FieldSet {
	return FieldSet{
		Ministry:                         s.Ministry || o.Ministry,
		Division:                         s.Division || o.Division,
		Branch:                           s.Branch || o.Branch,
		TechnicalContactEmail:            s.TechnicalContactEmail || o.TechnicalContactEmail,
		TechnicalContactIdirUserID:       s.TechnicalContactIdirUserID || o.TechnicalContactIdirUserID,
		SecondTechnicalContactEmail:      s.SecondTechnicalContactEmail || o.SecondTechnicalContactEmail,
		SecondTechnicalContactIdirUserID: s.SecondTechnicalContactIdirUserID || o.SecondTechnicalContactIdirUserID,
		ProductName:                      s.ProductName || o.ProductName,
		PrimaryEndUsers:                  s.PrimaryEndUsers || o.PrimaryEndUsers,
		ProductOwnerEmail:                s.ProductOwnerEmail || o.ProductOwnerEmail,
		ProductOwnerIdirUserID:           s.ProductOwnerIdirUserID || o.ProductOwnerIdirUserID,
		RcChannel:                        s.RcChannel || o.RcChannel,
		RcChannelOwnedBy:                 s.RcChannelOwnedBy || o.RcChannelOwnedBy,
		MaterialToSend:                   s.MaterialToSend || o.MaterialToSend,
		Approved:                         s.Approved || o.Approved,
	}
}

// Fields lists the permitted fields by JSON name.
func (s FieldSet) Fields() []domain.Field {
	var out []domain.Field
	add := func(ok bool, f domain.Field) {
		if ok {
			out = append(out, f)
		}
	}
	add(s.Ministry, domain.FieldMinistry)
	add(s.Division, domain.FieldDivision)
	add(s.Branch, domain.FieldBranch)
	add(s.TechnicalContactEmail, domain.FieldTechnicalContactEmail)
	add(s.TechnicalContactIdirUserID, domain.FieldTechnicalContactIdirUserID)
	add(s.SecondTechnicalContactEmail, domain.FieldSecondTechnicalContactEmail)
	add(s.SecondTechnicalContactIdirUserID, domain.FieldSecondTechnicalContactIdirUserID)
	add(s.ProductName, domain.FieldProductName)
	add(s.PrimaryEndUsers, domain.FieldPrimaryEndUsers)
	add(s.ProductOwnerEmail, domain.FieldProductOwnerEmail)
	add(s.ProductOwnerIdirUserID, domain.FieldProductOwnerIdirUserID)
	add(s.RcChannel, domain.FieldRcChannel)
	add(s.RcChannelOwnedBy, domain.FieldRcChannelOwnedBy)
	add(s.MaterialToSend, domain.FieldMaterialToSend)
	add(s.Approved, domain.FieldApproved)
	return out
}

// Contains reports whether f is permitted.
func (s FieldSet) Contains(f domain.Field) bool {
	for _, got := range s.Fields() {
		if got == f {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every field in s is also in o.
func (s FieldSet) SubsetOf(o FieldSet) bool {
	return s.union(o) == o
}
