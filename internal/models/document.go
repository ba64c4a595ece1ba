package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// CorePropertyNames lists the recognised document core properties in the
// order they are reported.
var CorePropertyNames = []string{
	"title",
	"author",
	"created",
	"modified",
	"last_modified_by",
	"description",
	"category",
	"comments",
	"subject",
	"keywords",
	"version",
	"revision",
	"identifier",
	"language",
	"content_status",
}

// Metadata maps core property names to their string values. Properties that
// are absent or empty are never present as keys.
type Metadata map[string]string

// IndentedJSON renders the metadata as a two-space indented JSON object with
// keys in CorePropertyNames order.
func (m Metadata) IndentedJSON() string {
	if len(m) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{\n")
	first := true
	for _, name := range CorePropertyNames {
		value, ok := m[name]
		if !ok {
			continue
		}
		if !first {
			b.WriteString(",\n")
		}
		first = false
		b.WriteString("  ")
		b.WriteString(quoteJSON(name))
		b.WriteString(": ")
		b.WriteString(quoteJSON(value))
	}
	b.WriteString("\n}")
	return b.String()
}

func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// Extraction is the text and metadata pulled out of one document.
type Extraction struct {
	Metadata   Metadata `json:"metadata"`
	Paragraphs []string `json:"paragraphs"`
}

// Text joins the paragraphs with newlines; empty paragraphs become empty lines.
func (e *Extraction) Text() string {
	if e == nil {
		return ""
	}
	return strings.Join(e.Paragraphs, "\n")
}
