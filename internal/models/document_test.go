package models

import "testing"

func TestExtractionTextKeepsEmptyParagraphs(t *testing.T) {
	ex := &Extraction{Paragraphs: []string{"Hello", "", "World"}}
	if got := ex.Text(); got != "Hello\n\nWorld" {
		t.Fatalf("unexpected text %q", got)
	}
	var missing *Extraction
	if missing.Text() != "" {
		t.Fatalf("nil extraction must yield empty text")
	}
}

func TestMetadataIndentedJSONFollowsPropertyOrder(t *testing.T) {
	meta := Metadata{
		"revision": "3",
		"title":    "Essay <draft>",
		"author":   "Sam",
	}
	want := "{\n  \"title\": \"Essay <draft>\",\n  \"author\": \"Sam\",\n  \"revision\": \"3\"\n}"
	if got := meta.IndentedJSON(); got != want {
		t.Fatalf("unexpected rendering:\n%s\nwant:\n%s", got, want)
	}
	if got := (Metadata{}).IndentedJSON(); got != "{}" {
		t.Fatalf("empty metadata rendered as %q", got)
	}
}
