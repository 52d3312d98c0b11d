// Package web embeds the chat page served at the root route.
package web

import (
	"embed"
	"html/template"
)

//go:embed index.html
var files embed.FS

// Page parses the embedded chat page template.
func Page() *template.Template {
	return template.Must(template.ParseFS(files, "index.html"))
}
