package pipeline

import (
	"fmt"
	"strings"
	"text/template"
)

const unspecifiedSeverity = "UNSPECIFIED"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeHTML replaces the characters that could break out of HTML text: & < > "
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var bodyTemplate = template.Must(template.New("failure").Funcs(template.FuncMap{
	"esc": EscapeHTML,
}).Parse(
	`<html><body style="font-family: Arial, sans-serif;">` +
		`<h2 style="color:#c0392b;">Automated test FAILED</h2>` +
		`<p><b>Environment:</b> {{esc .Env}}<br/>` +
		`<b>Severity:</b> {{esc .Severity}}<br/>` +
		`<b>Class:</b> {{esc .Class}}<br/>` +
		`<b>Test:</b> {{esc .Name}}</p>` +
		`{{with .Description}}<p><b>Description:</b> {{esc .}}</p>{{end}}` +
		`<h3>Steps</h3>` +
		`{{if .Steps}}<ol>{{range .Steps}}<li>{{esc .}}</li>{{end}}</ol>` +
		`{{else}}<p><i>No steps were logged.</i></p>{{end}}` +
		`<h3>Screenshot</h3>` +
		`{{if .HasScreenshot}}<p>The screenshot at the moment of failure:</p>` +
		`<img src="cid:screenshot" style="max-width:900px;border:1px solid #ccc;"/>` +
		`{{else}}<p><i>Screenshot not available.</i></p>{{end}}` +
		`<p style="margin-top:20px;">Best regards,<br/>Automation Framework</p>` +
		`</body></html>`,
))

// Artifact is everything known about a failure when the notification is rendered
type Artifact struct {
	Env           string
	Severity      string
	Class         string
	Name          string
	Description   string
	Steps         []string
	HasScreenshot bool
	RecordingPath string
}

// Subject renders the notification subject line
func (a Artifact) Subject() string {
	return fmt.Sprintf("[Automation Failure][%s] %s is not working on production", a.Severity, a.Name)
}

// HTML renders the notification body
func (a Artifact) HTML() (string, error) {
	var buf strings.Builder
	if err := bodyTemplate.Execute(&buf, a); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func resolveSeverity(severity string) string {
	if severity = strings.TrimSpace(severity); severity != "" {
		return severity
	}
	return unspecifiedSeverity
}
