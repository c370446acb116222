package domain

// Field names a RealmRequest attribute by its JSON key.
type Field string

const (
	FieldRealm                            Field = "realm"
	FieldPurpose                          Field = "purpose"
	FieldProductName                      Field = "productName"
	FieldPrimaryEndUsers                  Field = "primaryEndUsers"
	FieldEnvironments                     Field = "environments"
	FieldProductOwnerEmail                Field = "productOwnerEmail"
	FieldProductOwnerIdirUserID           Field = "productOwnerIdirUserId"
	FieldTechnicalContactEmail            Field = "technicalContactEmail"
	FieldTechnicalContactIdirUserID       Field = "technicalContactIdirUserId"
	FieldSecondTechnicalContactEmail      Field = "secondTechnicalContactEmail"
	FieldSecondTechnicalContactIdirUserID Field = "secondTechnicalContactIdirUserId"
	FieldMinistry                         Field = "ministry"
	FieldDivision                         Field = "division"
	FieldBranch                           Field = "branch"
	FieldRcChannel                        Field = "rcChannel"
	FieldRcChannelOwnedBy                 Field = "rcChannelOwnedBy"
	FieldMaterialToSend                   Field = "materialToSend"
	FieldApproved                         Field = "approved"
	FieldStatus                           Field = "status"
	FieldArchived                         Field = "archived"
	FieldPRNumber                         Field = "prNumber"
	FieldLastUpdatedBy                    Field = "lastUpdatedBy"
)

// fieldAccessors enumerates every audited attribute in a stable order.
var fieldAccessors = []struct {
	field Field
	get   func(r *RealmRequest) interface{}
}{
	{FieldRealm, func(r *RealmRequest) interface{} { return r.Realm }},
	{FieldPurpose, func(r *RealmRequest) interface{} { return r.Purpose }},
	{FieldProductName, func(r *RealmRequest) interface{} { return r.ProductName }},
	{FieldPrimaryEndUsers, func(r *RealmRequest) interface{} { return r.PrimaryEndUsers }},
	{FieldEnvironments, func(r *RealmRequest) interface{} { return r.Environments }},
	{FieldProductOwnerEmail, func(r *RealmRequest) interface{} { return r.ProductOwnerEmail }},
	{FieldProductOwnerIdirUserID, func(r *RealmRequest) interface{} { return r.ProductOwnerIdirUserID }},
	{FieldTechnicalContactEmail, func(r *RealmRequest) interface{} { return r.TechnicalContactEmail }},
	{FieldTechnicalContactIdirUserID, func(r *RealmRequest) interface{} { return r.TechnicalContactIdirUserID }},
	{FieldSecondTechnicalContactEmail, func(r *RealmRequest) interface{} { return r.SecondTechnicalContactEmail }},
	{FieldSecondTechnicalContactIdirUserID, func(r *RealmRequest) interface{} { return r.SecondTechnicalContactIdirUserID }},
	{FieldMinistry, func(r *RealmRequest) interface{} { return r.Ministry }},
	{FieldDivision, func(r *RealmRequest) interface{} { return r.Division }},
	{FieldBranch, func(r *RealmRequest) interface{} { return r.Branch }},
	{FieldRcChannel, func(r *RealmRequest) interface{} { return r.RcChannel }},
	{FieldRcChannelOwnedBy, func(r *RealmRequest) interface{} { return r.RcChannelOwnedBy }},
	{FieldMaterialToSend, func(r *RealmRequest) interface{} { return r.MaterialToSend }},
	{FieldApproved, func(r *RealmRequest) interface{} { return r.Approved.Bool() }},
	{FieldStatus, func(r *RealmRequest) interface{} { return r.Status }},
	{FieldArchived, func(r *RealmRequest) interface{} { return r.Archived }},
	{FieldPRNumber, func(r *RealmRequest) interface{} { return r.PRNumber }},
	{FieldLastUpdatedBy, func(r *RealmRequest) interface{} { return r.LastUpdatedBy }},
}

// AuditedFields returns every field Diff compares, in order.
func AuditedFields() []Field {
	out := make([]Field, len(fieldAccessors))
	for i, a := range fieldAccessors {
		out[i] = a.field
	}
	return out
}
