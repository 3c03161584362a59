// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package mail

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/samber/oops"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Kind selects the message template.
type Kind string

// Message kinds.
const (
	KindConfirmation Kind = "confirmation"
	KindRecovery     Kind = "recovery"
)

var subjects = map[Kind]string{
	KindConfirmation: "Confirm your email",
	KindRecovery:     "Password recovery",
}

type templateData struct {
	Code string
	Link string
}

// Render returns the subject and HTML body for kind. The link is baseURL
// with the code appended.
func Render(kind Kind, baseURL, code string) (subject string, body []byte, err error) {
	subject, ok := subjects[kind]
	if !ok {
		return "", nil, oops.Code("MAIL_UNKNOWN_KIND").With("kind", kind).Errorf("unknown message kind %q", kind)
	}

	var buf bytes.Buffer
	data := templateData{Code: code, Link: baseURL + code}
	if err := templates.ExecuteTemplate(&buf, string(kind)+".html", data); err != nil {
		return "", nil, oops.Code("MAIL_RENDER_FAILED").
			With("operation", "execute template").
			With("kind", kind).
			Wrap(err)
	}
	return subject, buf.Bytes(), nil
}
