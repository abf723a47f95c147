package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/layout.html templates/mail.txt
var templatesFS embed.FS

// Rendered is a mail ready for a Mailer.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer turns messages into HTML and plain-text bodies.
type Renderer struct {
	AppName string
	Logo    string

	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewRenderer(appName, logo string) (*Renderer, error) {
	html, err := htmltemplate.ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templatesFS, "templates/mail.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Renderer{AppName: appName, Logo: logo, html: html, text: text}, nil
}

// TemplateData is the variable set every template can rely on.
func (r *Renderer) TemplateData(m Message) map[string]any {
	company := m.CompanyName
	if company == "" {
		company = r.AppName
	}
	data := map[string]any{
		"companyLogo": r.Logo,
		"companyName": company,
		"subject":     m.Subject,
		"greeting":    m.Greeting,
		"content":     strings.Join(m.IntroLines, "\n"),
		"introLines":  m.IntroLines,
		"outroLines":  m.OutroLines,
		"acceptUrl":   m.AcceptURL,
		"rejectUrl":   m.RejectURL,
		"loginUrl":    m.LoginURL,
		"salutation":  m.Salutation,
		"action":      nil,
	}
	if m.Action != nil {
		data["action"] = map[string]string{"text": m.Action.Text, "url": m.Action.URL}
	}
	return data
}

func (r *Renderer) Render(m Message) (Rendered, error) {
	data := r.TemplateData(m)
	var html, text bytes.Buffer
	if err := r.html.ExecuteTemplate(&html, "mail", data); err != nil {
		return Rendered{}, fmt.Errorf("render html: %w", err)
	}
	if err := r.text.ExecuteTemplate(&text, "mail", data); err != nil {
		return Rendered{}, fmt.Errorf("render text: %w", err)
	}
	return Rendered{Subject: m.Subject, HTML: html.String(), Text: strings.TrimSpace(text.String()) + "\n"}, nil
}
