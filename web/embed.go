// Package web carries the embedded templates and static assets for the
// expense tracker UI.
package web

import "embed"

// TemplatesFS embeds the HTML templates for server-side rendering.
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css/js).
//go:embed static/*
var StaticFS embed.FS
