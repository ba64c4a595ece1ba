package document

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/gabriel-vasile/mimetype"

	"traitor/internal/apperr"
	"traitor/internal/models"
)

const zipMIME = "application/zip"

// Extractor turns downloaded document bytes into metadata and paragraphs.
type Extractor struct {
	parser parser.Parser
}

// NewExtractor registers the docx parser by extension and as the fallback, so
// uploads without a .docx suffix are still attempted.
func NewExtractor(ctx context.Context) (*Extractor, error) {
	docx := &DocxParser{}
	ext, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".docx": docx,
		},
		FallbackParser: docx,
	})
	if err != nil {
		return nil, fmt.Errorf("init document parser: %w", err)
	}
	return &Extractor{parser: ext}, nil
}

// Extract parses data, which was stored under name.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) (*models.Extraction, error) {
	op := "extract " + name
	if mt := mimetype.Detect(data); !isZipPackage(mt) {
		return nil, apperr.Errorf(apperr.Parse, op, "not a docx package (detected %s)", mt.String())
	}

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data), parser.WithURI(name))
	if err != nil {
		return nil, apperr.E(apperr.Parse, op, err)
	}
	if len(docs) == 0 || docs[0] == nil {
		return nil, apperr.Errorf(apperr.Parse, op, "parser returned no document")
	}

	doc := docs[0]
	meta, _ := doc.MetaData[MetaKeyCoreProperties].(models.Metadata)
	if meta == nil {
		meta = models.Metadata{}
	}
	paragraphs, _ := doc.MetaData[MetaKeyParagraphs].([]string)
	if paragraphs == nil {
		paragraphs = []string{}
	}
	return &models.Extraction{Metadata: meta, Paragraphs: paragraphs}, nil
}

func isZipPackage(mt *mimetype.MIME) bool {
	for ; mt != nil; mt = mt.Parent() {
		if mt.Is(zipMIME) {
			return true
		}
	}
	return false
}
