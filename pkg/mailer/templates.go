package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"sort"
	"strings"
	texttemplate "text/template"
)

// Data is the substitution set shared by every template.
type Data struct {
	CustomerName   string
	OrderID        string
	OrderStatus    string
	TrackingNumber string
	Carrier        string
	TrackingURL    string
	Subject        string
	Message        string
	StoreName      string
	Signature      string
}

type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type tmpl struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

const layoutHTML = `<!doctype html><html><body style="font-family:Arial,sans-serif;color:#222">
<p>Olá{{if .CustomerName}} {{.CustomerName}}{{end}},</p>
{{block "content" .}}{{end}}
{{if .Signature}}<p style="white-space:pre-line">{{.Signature}}</p>{{end}}
<p style="color:#888;font-size:12px">{{.StoreName}}</p>
</body></html>`

var definitions = map[string]struct{ subject, text, html string }{
	"order_status": {
		subject: `Pedido #{{.OrderID}}: {{.OrderStatus}}`,
		text: `Olá{{if .CustomerName}} {{.CustomerName}}{{end}},

O status do seu pedido #{{.OrderID}} foi atualizado para: {{.OrderStatus}}.
{{if .Message}}
{{.Message}}
{{end}}{{if .Signature}}
{{.Signature}}{{end}}`,
		html: `{{define "content"}}<p>O status do seu pedido <strong>#{{.OrderID}}</strong> foi atualizado para <strong>{{.OrderStatus}}</strong>.</p>
{{if .Message}}<p style="white-space:pre-line">{{.Message}}</p>{{end}}{{end}}`,
	},
	"shipping_update": {
		subject: `Seu pedido #{{.OrderID}} foi enviado`,
		text: `Olá{{if .CustomerName}} {{.CustomerName}}{{end}},

Seu pedido #{{.OrderID}} foi enviado{{if .Carrier}} via {{.Carrier}}{{end}}.
{{if .TrackingNumber}}Código de rastreio: {{.TrackingNumber}}
{{end}}{{if .TrackingURL}}Acompanhe: {{.TrackingURL}}
{{end}}{{if .Message}}
{{.Message}}
{{end}}{{if .Signature}}
{{.Signature}}{{end}}`,
		html: `{{define "content"}}<p>Seu pedido <strong>#{{.OrderID}}</strong> foi enviado{{if .Carrier}} via {{.Carrier}}{{end}}.</p>
{{if .TrackingNumber}}<p>Código de rastreio: <strong>{{.TrackingNumber}}</strong></p>{{end}}
{{if .TrackingURL}}<p><a href="{{.TrackingURL}}">Acompanhar entrega</a></p>{{end}}
{{if .Message}}<p style="white-space:pre-line">{{.Message}}</p>{{end}}{{end}}`,
	},
	"custom": {
		subject: `{{.Subject}}`,
		text: `Olá{{if .CustomerName}} {{.CustomerName}}{{end}},

{{.Message}}
{{if .Signature}}
{{.Signature}}{{end}}`,
		html: `{{define "content"}}<p style="white-space:pre-line">{{.Message}}</p>{{end}}`,
	},
}

// Templates is the registry of named email templates.
type Templates struct {
	byName map[string]tmpl
}

func NewTemplates() (*Templates, error) {
	t := &Templates{byName: make(map[string]tmpl, len(definitions))}
	for name, def := range definitions {
		subj, err := texttemplate.New(name + ".subject").Option("missingkey=zero").Parse(def.subject)
		if err != nil {
			return nil, fmt.Errorf("mailer: template %s subject: %w", name, err)
		}
		text, err := texttemplate.New(name + ".text").Parse(def.text)
		if err != nil {
			return nil, fmt.Errorf("mailer: template %s text: %w", name, err)
		}
		html, err := htmltemplate.New(name + ".html").Parse(layoutHTML)
		if err == nil {
			html, err = html.Parse(def.html)
		}
		if err != nil {
			return nil, fmt.Errorf("mailer: template %s html: %w", name, err)
		}
		t.byName[name] = tmpl{subject: subj, text: text, html: html}
	}
	return t, nil
}

func (t *Templates) Names() []string {
	out := make([]string, 0, len(t.byName))
	for n := range t.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (t *Templates) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

func (t *Templates) Render(name string, d Data) (Rendered, error) {
	tp, ok := t.byName[name]
	if !ok {
		return Rendered{}, fmt.Errorf("mailer: unknown template %q", name)
	}
	var subj, text, html bytes.Buffer
	if err := tp.subject.Execute(&subj, d); err != nil {
		return Rendered{}, err
	}
	if err := tp.text.Execute(&text, d); err != nil {
		return Rendered{}, err
	}
	if err := tp.html.Execute(&html, d); err != nil {
		return Rendered{}, err
	}
	return Rendered{
		Subject: strings.TrimSpace(subj.String()),
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}
