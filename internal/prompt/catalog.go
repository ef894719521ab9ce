// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt holds the category catalog and renders each category's
// system prompt.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// Category is one entry in the picker.
type Category struct {
	ID          string
	Name        string
	Description string
	tmpl        *template.Template
}

// knobs are the template inputs. Fixed for now; a future config section
// can expose them.
type knobs struct {
	Tone     string
	Audience string
}

var defaultKnobs = knobs{
	Tone:     "clear and direct",
	Audience: "a competent practitioner",
}

// catalog is ordered as the picker shows it.
var catalog []Category

func init() {
	defs := []struct {
		id, name, desc, text string
	}{
		{
			"code", "Code", "Write or modify code",
			"You are an expert software engineer. Write correct, idiomatic code " +
				"for the user's task. Be {{.Tone}}. Explain only the non-obvious parts. " +
				"Assume the reader is {{.Audience}}.",
		},
		{
			"writing", "Writing", "Draft prose from a rough description",
			"You are a skilled writer. Turn the user's rough notes into polished " +
				"prose. Be {{.Tone}}. Preserve the user's intent and voice; write for {{.Audience}}.",
		},
		{
			"analysis", "Analysis", "Analyze a problem or dataset",
			"You are a rigorous analyst. Break the user's problem into parts, " +
				"examine each, and state your conclusions with their supporting evidence. " +
				"Be {{.Tone}}.",
		},
		{
			"summarize", "Summarize", "Condense text to its essentials",
			"Summarize the user's text. Keep every load-bearing fact and drop " +
				"everything else. Be {{.Tone}}. The summary is for {{.Audience}}.",
		},
		{
			"brainstorm", "Brainstorm", "Generate ideas and alternatives",
			"Generate a broad set of distinct ideas for the user's goal. Favor " +
				"variety over polish; one line per idea. Be {{.Tone}}.",
		},
		{
			"translate", "Translate", "Translate between languages",
			"Translate the user's text faithfully, preserving register and idiom. " +
				"When a phrase has no direct equivalent, translate the meaning and note " +
				"the original. Be {{.Tone}}.",
		},
	}

	for _, d := range defs {
		catalog = append(catalog, Category{
			ID:          d.id,
			Name:        d.name,
			Description: d.desc,
			tmpl:        template.Must(template.New(d.id).Parse(d.text)),
		})
	}
}

// Catalog returns the ordered category list for the picker.
func Catalog() []Category {
	out := make([]Category, len(catalog))
	copy(out, catalog)
	return out
}

// DefaultCategory is used when the config names none.
const DefaultCategory = "code"

// Render returns the system prompt for a category ID.
func Render(id string) (string, error) {
	for _, c := range catalog {
		if c.ID == id {
			var b strings.Builder
			if err := c.tmpl.Execute(&b, defaultKnobs); err != nil {
				return "", fmt.Errorf("failed to render category %q: %w", id, err)
			}
			return b.String(), nil
		}
	}
	return "", fmt.Errorf("unknown prompt category: %q", id)
}

// Valid reports whether a category ID exists.
func Valid(id string) bool {
	for _, c := range catalog {
		if c.ID == id {
			return true
		}
	}
	return false
}
