package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const (
	EmailKindEbook    = "ebook"
	EmailKindFollowup = "followup"
)

// EmailTemplate is the subject and bodies of one email kind. Fields use Go template syntax.
type EmailTemplate struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// EmailTemplateData is the data every email template can reference
type EmailTemplateData struct {
	Name        string
	Email       string
	DownloadURL string
	ExpiresAt   string
	BookTitle   string
	Author      string
}

var DefaultEmailTemplates = map[string]EmailTemplate{
	EmailKindEbook: {
		Subject: "Your free copy of {{.BookTitle}}",
		HTML: `<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Thanks for your interest in <strong>{{.BookTitle}}</strong>{{if .Author}} by {{.Author}}{{end}}.</p>
<p><a href="{{.DownloadURL}}">Download your ebook</a></p>
<p>The link expires on {{.ExpiresAt}}.</p>`,
		Text: "Hi {{if .Name}}{{.Name}}{{else}}there{{end}},\n\nDownload {{.BookTitle}}: {{.DownloadURL}}\nThe link expires on {{.ExpiresAt}}.\n",
	},
	EmailKindFollowup: {
		Subject: "Still want to read {{.BookTitle}}?",
		HTML: `<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Here is a fresh link to <strong>{{.BookTitle}}</strong>.</p>
<p><a href="{{.DownloadURL}}">Download your ebook</a></p>
<p>The link expires on {{.ExpiresAt}}.</p>`,
		Text: "Hi {{if .Name}}{{.Name}}{{else}}there{{end}},\n\nHere is a fresh link to {{.BookTitle}}: {{.DownloadURL}}\nThe link expires on {{.ExpiresAt}}.\n",
	},
}

// EmailTemplateFromPayload reads the template of one kind from an email config payload
// shaped like {"ebook": {"subject": ..., "html": ..., "text": ...}, "followup": {...}}.
// Missing fields fall back to the defaults.
func EmailTemplateFromPayload(payload []byte, kind string) EmailTemplate {
	tmpl := DefaultEmailTemplates[kind]
	if len(payload) == 0 {
		return tmpl
	}
	var doc map[string]EmailTemplate
	if err := json.Unmarshal(payload, &doc); err != nil {
		return tmpl
	}
	custom, ok := doc[kind]
	if !ok {
		return tmpl
	}
	if custom.Subject != "" {
		tmpl.Subject = custom.Subject
	}
	if custom.HTML != "" {
		tmpl.HTML = custom.HTML
	}
	if custom.Text != "" {
		tmpl.Text = custom.Text
	}
	return tmpl
}

// RenderEmail executes the template for one recipient. The HTML body is escaped contextually.
func RenderEmail(tmpl EmailTemplate, to string, data EmailTemplateData) (EmailMessage, error) {
	subject, err := renderText("subject", tmpl.Subject, data)
	if err != nil {
		return EmailMessage{}, err
	}
	text, err := renderText("text", tmpl.Text, data)
	if err != nil {
		return EmailMessage{}, err
	}

	var html bytes.Buffer
	if tmpl.HTML != "" {
		t, err := htmltemplate.New("html").Parse(tmpl.HTML)
		if err != nil {
			return EmailMessage{}, fmt.Errorf("failed to parse html template: %w", err)
		}
		if err := t.Execute(&html, data); err != nil {
			return EmailMessage{}, fmt.Errorf("failed to render html template: %w", err)
		}
	}

	return EmailMessage{To: to, Subject: subject, HTML: html.String(), Text: text}, nil
}

func renderText(name, src string, data EmailTemplateData) (string, error) {
	if src == "" {
		return "", nil
	}
	t, err := texttemplate.New(name).Parse(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}
