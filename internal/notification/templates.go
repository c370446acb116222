package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"realmsteward.io/steward/internal/domain"
)

// Kind identifies a lifecycle email.
type Kind string

const (
	KindCreate           Kind = "create"
	KindUpdate           Kind = "update"
	KindApprove          Kind = "approve"
	KindDecline          Kind = "decline"
	KindRestore          Kind = "restore"
	KindDelete           Kind = "delete"
	KindReadyToUse       Kind = "ready-to-use"
	KindDeletionComplete Kind = "deletion-complete"
	KindAdminOnboard     Kind = "admin-onboard"
	KindAdminOffboard    Kind = "admin-offboard"
)

// ccAdmins lists the kinds the admin mailbox is copied on.
var ccAdmins = map[Kind]bool{
	KindCreate:           true,
	KindApprove:          true,
	KindDecline:          true,
	KindRestore:          true,
	KindDelete:           true,
	KindDeletionComplete: true,
}

type content struct {
	subject *template.Template
	body    *template.Template
}

func mustContent(subject, body string) content {
	return content{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

var contents = map[Kind]content{
	KindCreate: mustContent(
		`Realm {{ .Realm.Realm }} requested`,
		`A request for the realm "{{ .Realm.Realm }}" was submitted by {{ .Realm.LastUpdatedBy }}.

Purpose: {{ .Realm.Purpose }}
Environments: {{ .Environments }}

The request is pending review by an administrator. Track it at {{ .Link }}.
`),
	KindUpdate: mustContent(
		`Realm {{ .Realm.Realm }} updated`,
		`The realm "{{ .Realm.Realm }}" was updated by {{ .Realm.LastUpdatedBy }}.

Status: {{ .Realm.Status }}
Details: {{ .Link }}
`),
	KindApprove: mustContent(
		`Realm {{ .Realm.Realm }} approved`,
		`The request for the realm "{{ .Realm.Realm }}" was approved by {{ .Realm.LastUpdatedBy }}.

Status: {{ .Realm.Status }}
{{- if .Realm.PRNumber }}
Provisioning pull request: #{{ .Realm.PRNumber }}
{{- end }}

You will be notified once the realm is ready in {{ .Environments }}.
`),
	KindDecline: mustContent(
		`Realm {{ .Realm.Realm }} declined`,
		`The request for the realm "{{ .Realm.Realm }}" was declined by {{ .Realm.LastUpdatedBy }}.

Contact the administrators if you have questions. Details: {{ .Link }}
`),
	KindRestore: mustContent(
		`Realm {{ .Realm.Realm }} restored`,
		`The realm "{{ .Realm.Realm }}" was restored by {{ .Realm.LastUpdatedBy }} and is enabled again in {{ .Environments }}.
`),
	KindDelete: mustContent(
		`Realm {{ .Realm.Realm }} scheduled for deletion`,
		`The realm "{{ .Realm.Realm }}" was archived by {{ .Realm.LastUpdatedBy }}.

It has been disabled and will be removed from {{ .Environments }} by the next provisioning run.
`),
	KindReadyToUse: mustContent(
		`Realm {{ .Realm.Realm }} is ready`,
		`The realm "{{ .Realm.Realm }}" has been provisioned in {{ .Environments }} and is ready to use.

Product owner and technical contacts have been granted realm-admin access. Details: {{ .Link }}
`),
	KindDeletionComplete: mustContent(
		`Realm {{ .Realm.Realm }} deleted`,
		`The realm "{{ .Realm.Realm }}" has been removed from {{ .Environments }} and realm-admin access was revoked.
`),
	KindAdminOnboard: mustContent(
		`Realm admin access for {{ .Realm.Realm }}`,
		`{{ .Contact }} was granted realm-admin access to "{{ .Realm.Realm }}" in {{ .Environments }}.
`),
	KindAdminOffboard: mustContent(
		`Realm admin access removed for {{ .Realm.Realm }}`,
		`{{ .Contact }} no longer has realm-admin access to "{{ .Realm.Realm }}" in {{ .Environments }}.
`),
}

// Extra carries the per-email data not found on the record.
type Extra struct {
	// Contact is the subject of admin onboard and offboard emails. When set,
	// the email goes to this address only.
	Contact string
}

type templateData struct {
	Realm        *domain.RealmRequest
	Environments string
	Link         string
	Contact      string
}

// Renderer builds emails for lifecycle events.
type Renderer struct {
	appURL  string
	adminCc []string
}

// NewRenderer creates a renderer that links to appURL and copies adminCc on
// administrative emails.
func NewRenderer(appURL string, adminCc []string) *Renderer {
	return &Renderer{appURL: strings.TrimRight(appURL, "/"), adminCc: adminCc}
}

// Render builds the email of kind for r.
func (rd *Renderer) Render(kind Kind, r *domain.RealmRequest, extra Extra) (Email, error) {
	c, ok := contents[kind]
	if !ok {
		return Email{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	envs := make([]string, len(r.Environments))
	for i, e := range r.Environments {
		envs[i] = string(e)
	}
	data := templateData{
		Realm:        r,
		Environments: strings.Join(envs, ", "),
		Link:         fmt.Sprintf("%s/realms/%d", rd.appURL, r.ID),
		Contact:      extra.Contact,
	}

	var subject, body bytes.Buffer
	if err := c.subject.Execute(&subject, data); err != nil {
		return Email{}, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := c.body.Execute(&body, data); err != nil {
		return Email{}, fmt.Errorf("render %s body: %w", kind, err)
	}

	e := Email{Subject: subject.String(), Body: body.String()}
	if extra.Contact != "" {
		e.To = []string{extra.Contact}
	} else {
		e.To = contactEmails(r)
	}
	if ccAdmins[kind] {
		e.Cc = append([]string(nil), rd.adminCc...)
	}
	return e, nil
}

// contactEmails returns the record's contact addresses, deduplicated
// case-insensitively in owner, technical, secondary order.
func contactEmails(r *domain.RealmRequest) []string {
	seen := map[string]bool{}
	var out []string
	for _, addr := range []string{r.ProductOwnerEmail, r.TechnicalContactEmail, r.SecondTechnicalContactEmail} {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	return out
}
