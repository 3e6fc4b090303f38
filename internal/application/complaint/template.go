package complaint

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/gram-sevak/internal/domain"
)

// Link points at an attachment that was stored instead of mailed.
type Link struct {
	Name string
	URL  string
}

type view struct {
	Reference      string
	Title          string
	Category       string
	Priority       string
	Location       string
	Description    string
	ComplainerName string
	SubmittedBy    string
	SubmittedAt    string
	Attachments    int
	HasVoiceNote   bool
	Links          []Link
}

func newView(c *domain.Complaint) view {
	v := view{
		Reference:      c.Reference,
		Title:          c.Title,
		Category:       c.Category,
		Priority:       strings.ToUpper(c.Priority),
		Location:       c.Location,
		Description:    c.Description,
		ComplainerName: c.ComplainerName,
		SubmittedBy:    c.SubmittedBy,
		SubmittedAt:    c.SubmittedAt.Format("02 Jan 2006, 03:04:05 PM MST"),
		Attachments:    len(c.Attachments()),
		HasVoiceNote:   c.VoiceNote != nil,
	}
	if v.Location == "" {
		v.Location = "Not specified"
	}
	if v.Description == "" {
		v.Description = "No description provided"
	}
	return v
}

var htmlTmpl = htmltemplate.Must(htmltemplate.New("complaint").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; line-height: 1.6;">
  <h1 style="color: #1e40af; text-align: center;">NEW VILLAGE COMPLAINT</h1>
  <div style="background: #f0f9ff; padding: 24px; border-radius: 12px; border-left: 6px solid #3b82f6;">
    <h2 style="color: #1e293b;">Complaint Details</h2>
    <p><strong>Reference:</strong> {{.Reference}}</p>
    <p><strong>Title:</strong> {{.Title}}</p>
    <p><strong>Category:</strong> <span style="background: #dbeafe; padding: 6px 12px; border-radius: 20px;">{{.Category}}</span></p>
    <p><strong>Priority:</strong> <span style="color: #dc2626; font-weight: bold;">{{.Priority}}</span></p>
    <p><strong>Location:</strong> {{.Location}}</p>
    {{- if .ComplainerName}}
    <p><strong>Complainer:</strong> {{.ComplainerName}}</p>
    {{- end}}
    {{- if .SubmittedBy}}
    <p><strong>Signed in as:</strong> {{.SubmittedBy}}</p>
    {{- end}}
    <p><strong>No of Attachments:</strong> {{.Attachments}}</p>
    <p><strong>Voice note attached:</strong> {{if .HasVoiceNote}}Yes{{else}}No{{end}}</p>
  </div>
  <div style="background: #f0fdf4; padding: 20px; border-radius: 12px; border-left: 6px solid #10b981; margin-top: 20px;">
    <h3 style="color: #065f46;">Description</h3>
    <p>{{.Description}}</p>
  </div>
  {{- if .Links}}
  <div style="background: #fefce8; padding: 20px; border-radius: 12px; border-left: 6px solid #eab308; margin-top: 20px;">
    <h3 style="color: #713f12;">Attachments (download links)</h3>
    <ul>
    {{- range .Links}}
      <li><a href="{{.URL}}">{{.Name}}</a></li>
    {{- end}}
    </ul>
  </div>
  {{- end}}
  <div style="margin-top: 24px; padding: 16px; background: #eff6ff; border-radius: 8px; text-align: center;">
    <p><strong>Submitted:</strong> {{.SubmittedAt}}</p>
    <p style="font-style: italic;">Via Gram-Sevak Portal</p>
  </div>
</div>
`))

var textTmpl = texttemplate.Must(texttemplate.New("complaint").Parse(`NEW VILLAGE COMPLAINT

Reference: {{.Reference}}
Title: {{.Title}}
Category: {{.Category}}
Priority: {{.Priority}}
Location: {{.Location}}
{{- if .ComplainerName}}
Complainer: {{.ComplainerName}}
{{- end}}
{{- if .SubmittedBy}}
Signed in as: {{.SubmittedBy}}
{{- end}}
No of Attachments: {{.Attachments}}
Voice note attached: {{if .HasVoiceNote}}Yes{{else}}No{{end}}

Description:
{{.Description}}
{{- if .Links}}

Attachments (download links):
{{- range .Links}}
- {{.Name}}: {{.URL}}
{{- end}}
{{- end}}

Submitted: {{.SubmittedAt}}
Via Gram-Sevak Portal
`))

func render(v view) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := htmlTmpl.Execute(&hb, v); err != nil {
		return "", "", fmt.Errorf("render complaint html: %w", err)
	}
	if err := textTmpl.Execute(&tb, v); err != nil {
		return "", "", fmt.Errorf("render complaint text: %w", err)
	}
	return hb.String(), tb.String(), nil
}
