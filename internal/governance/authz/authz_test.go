package authz

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realmsteward.io/steward/internal/domain"
)

const adminMarker = "sso-admin"

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestClassifyRole(t *testing.T) {
	record := &domain.RealmRequest{
		ProductOwnerIdirUserID:     "OwnerID",
		TechnicalContactIdirUserID: "techid",
	}

	tests := []struct {
		name  string
		actor Actor
		want  Role
	}{
		{"admin marker wins", Actor{UserID: "u", IdirUserID: "ownerid", Roles: []string{adminMarker}}, RoleAdmin},
		{"product owner case-insensitive", Actor{UserID: "u", IdirUserID: "OWNERID"}, RoleProductOwner},
		{"technical contact", Actor{UserID: "u", IdirUserID: "techid"}, RoleTechnicalContact},
		{"stranger defaults to technical contact", Actor{UserID: "u", IdirUserID: "other"}, RoleTechnicalContact},
		{"other roles are not admin", Actor{UserID: "u", Roles: []string{"viewer"}}, RoleTechnicalContact},
		{"empty idir never matches", Actor{UserID: "u"}, RoleTechnicalContact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRole(tt.actor, record, adminMarker))
		})
	}

	assert.Equal(t, RoleTechnicalContact, ClassifyRole(Actor{IdirUserID: "ownerid"}, nil, adminMarker))
}

func TestAllowedFields_NestedSupersets(t *testing.T) {
	tc := AllowedFields(RoleTechnicalContact)
	po := AllowedFields(RoleProductOwner)
	admin := AllowedFields(RoleAdmin)

	assert.True(t, tc.SubsetOf(po))
	assert.True(t, po.SubsetOf(admin))
	assert.False(t, po.SubsetOf(tc))
	assert.False(t, admin.SubsetOf(po))

	assert.ElementsMatch(t, []domain.Field{
		domain.FieldMinistry, domain.FieldDivision, domain.FieldBranch,
		domain.FieldTechnicalContactEmail, domain.FieldTechnicalContactIdirUserID,
		domain.FieldSecondTechnicalContactEmail, domain.FieldSecondTechnicalContactIdirUserID,
	}, tc.Fields())

	assert.True(t, po.Contains(domain.FieldProductName))
	assert.False(t, po.Contains(domain.FieldApproved))
	assert.True(t, admin.Contains(domain.FieldApproved))
	assert.True(t, admin.Contains(domain.FieldMaterialToSend))
}

func TestAllowedFields_NeverIncludeCreationOnlyFields(t *testing.T) {
	for _, role := range []Role{RoleTechnicalContact, RoleProductOwner, RoleAdmin} {
		fs := AllowedFields(role)
		for _, f := range []domain.Field{domain.FieldRealm, domain.FieldEnvironments, domain.FieldStatus, domain.FieldArchived, domain.FieldPRNumber} {
			assert.False(t, fs.Contains(f), "%s may change %s", role, f)
		}
	}
}

// FieldSet and RealmPatch must describe the same fields.
func TestFieldSetMirrorsRealmPatch(t *testing.T) {
	setType := reflect.TypeOf(FieldSet{})
	patchType := reflect.TypeOf(RealmPatch{})
	require.Equal(t, setType.NumField(), patchType.NumField())

	for i := 0; i < setType.NumField(); i++ {
		name := setType.Field(i).Name
		pf, ok := patchType.FieldByName(name)
		require.True(t, ok, "RealmPatch has no field %s", name)
		assert.Equal(t, reflect.Ptr, pf.Type.Kind(), "RealmPatch.%s must be a pointer", name)
	}

	// every flag maps to a distinct JSON field
	full := FieldSet{}
	v := reflect.ValueOf(&full).Elem()
	for i := 0; i < v.NumField(); i++ {
		v.Field(i).SetBool(true)
	}
	assert.Len(t, full.Fields(), setType.NumField())
}

func TestFilter(t *testing.T) {
	patch := RealmPatch{
		TechnicalContactEmail: strPtr("x@y.com"),
		ProductName:           strPtr("Z"),
		RcChannel:             strPtr("#chan"),
		Approved:              boolPtr(true),
	}

	tests := []struct {
		name string
		role Role
		want FieldSet
	}{
		{"technical contact", RoleTechnicalContact, FieldSet{TechnicalContactEmail: true}},
		{"product owner", RoleProductOwner, FieldSet{TechnicalContactEmail: true, ProductName: true}},
		{"admin", RoleAdmin, FieldSet{TechnicalContactEmail: true, ProductName: true, RcChannel: true, Approved: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(tt.role, patch)
			assert.Equal(t, tt.want, got.Touched())
		})
	}

	assert.NotNil(t, patch.ProductName, "Filter must not mutate its input")
}

func TestFilter_UnknownKeysDropped(t *testing.T) {
	raw := `{"technicalContactEmail":"x@y.com","realm":"renamed","environments":["prod"],"status":"applied","bogus":1}`

	var p RealmPatch
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	got := Filter(RoleAdmin, p)
	assert.Equal(t, FieldSet{TechnicalContactEmail: true}, got.Touched())
}

func TestRealmPatch_ApplyTo(t *testing.T) {
	r := &domain.RealmRequest{
		Ministry:        "Old",
		ProductName:     "Keep",
		PrimaryEndUsers: []string{"staff"},
	}
	users := []string{"public", "partners"}
	p := RealmPatch{
		Ministry:        strPtr("New"),
		PrimaryEndUsers: &users,
		Approved:        boolPtr(false),
	}

	p.ApplyTo(r)

	assert.Equal(t, "New", r.Ministry)
	assert.Equal(t, "Keep", r.ProductName)
	assert.Equal(t, []string{"public", "partners"}, r.PrimaryEndUsers)
	assert.Equal(t, domain.ApprovalDeclined, r.Approved)

	users[0] = "mutated"
	assert.Equal(t, "public", r.PrimaryEndUsers[0])
}

func TestRealmPatch_Touches(t *testing.T) {
	p := RealmPatch{Approved: boolPtr(true)}
	assert.True(t, p.Touches(domain.FieldApproved))
	assert.False(t, p.Touches(domain.FieldMinistry))
	assert.False(t, p.IsEmpty())
	assert.True(t, RealmPatch{}.IsEmpty())
}

func TestActor(t *testing.T) {
	a := Actor{UserID: "sub", Roles: []string{"viewer", adminMarker}}
	assert.True(t, a.Authenticated())
	assert.True(t, a.IsAdmin(adminMarker))
	assert.False(t, a.IsAdmin(""))
	assert.False(t, Actor{}.Authenticated())
}
