// Package web holds the templates and static assets served by the dashboard.
package web

import "embed"

// TemplatesFS holds the page and partial templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and script.
//
//go:embed static/*
var StaticFS embed.FS
