// Package document extracts paragraphs and core properties from .docx
// packages.
package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"traitor/internal/models"
)

// Keys under which DocxParser stores its results in schema.Document.MetaData.
const (
	MetaKeyCoreProperties = "core_properties"
	MetaKeyParagraphs     = "paragraphs"
)

const (
	wordNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	wordStrictNS = "http://purl.oclc.org/ooxml/wordprocessingml/main"

	relOfficeDocument       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relOfficeDocumentStrict = "http://purl.oclc.org/ooxml/officeDocument/relationships/officeDocument"
	relCoreProperties       = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"

	defaultDocumentPart = "word/document.xml"
	defaultCorePart     = "docProps/core.xml"

	maxPartBytes = 64 << 20
)

var errNoBody = errors.New("document part has no body")

// DocxParser is an eino parser for WordprocessingML packages. It returns a
// single document whose content is the newline-joined paragraph text.
type DocxParser struct{}

var _ parser.Parser = (*DocxParser)(nil)

func (p *DocxParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	options := parser.GetCommonOptions(&parser.Options{}, opts...)

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	pkg := newPackage(zr)

	docPart := pkg.target(relOfficeDocument, relOfficeDocumentStrict)
	if docPart == "" {
		docPart = defaultDocumentPart
	}
	paragraphs, err := pkg.paragraphs(docPart)
	if err != nil {
		return nil, err
	}

	corePart := pkg.target(relCoreProperties)
	if corePart == "" {
		corePart = defaultCorePart
	}
	meta, err := pkg.coreProperties(corePart)
	if err != nil {
		return nil, err
	}

	doc := &schema.Document{
		ID:      options.URI,
		Content: strings.Join(paragraphs, "\n"),
		MetaData: map[string]any{
			MetaKeyCoreProperties: meta,
			MetaKeyParagraphs:     paragraphs,
		},
	}
	for k, v := range options.ExtraMeta {
		doc.MetaData[k] = v
	}
	return []*schema.Document{doc}, nil
}

type docxPackage struct {
	files map[string]*zip.File
}

func newPackage(zr *zip.Reader) *docxPackage {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[strings.TrimPrefix(f.Name, "/")] = f
	}
	return &docxPackage{files: files}
}

func (p *docxPackage) open(name string) (io.ReadCloser, bool, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, true, fmt.Errorf("open part %s: %w", name, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(rc, maxPartBytes), rc}, true, nil
}

type relationships struct {
	Items []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
		Mode   string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// target returns the part the package-level relationship of one of the types
// points at, or "" when the package does not declare it.
func (p *docxPackage) target(types ...string) string {
	rc, ok, err := p.open("_rels/.rels")
	if !ok || err != nil {
		return ""
	}
	defer rc.Close()

	var rels relationships
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return ""
	}
	for _, rel := range rels.Items {
		if rel.Mode == "External" {
			continue
		}
		for _, t := range types {
			if rel.Type == t {
				return strings.TrimPrefix(path.Clean("/"+rel.Target), "/")
			}
		}
	}
	return ""
}

func (p *docxPackage) paragraphs(name string) ([]string, error) {
	rc, ok, err := p.open(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("package has no main document part %s", name)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(rc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return paragraphs, nil
}

func isWord(name xml.Name) bool {
	return name.Space == wordNS || name.Space == wordStrictNS
}

// readParagraphs returns the text of every paragraph that is a direct child of
// the document body, in order.
func readParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	paragraphs := []string{}
	depth, bodyDepth := 0, 0
	sawBody := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if !sawBody && isWord(el.Name) && el.Name.Local == "body" {
				sawBody = true
				bodyDepth = depth
				continue
			}
			if bodyDepth > 0 && depth == bodyDepth+1 && isWord(el.Name) && el.Name.Local == "p" {
				text, err := paragraphText(dec)
				if err != nil {
					return nil, err
				}
				paragraphs = append(paragraphs, text)
				depth--
			}
		case xml.EndElement:
			if depth == bodyDepth {
				bodyDepth = 0
			}
			depth--
		}
	}
	if !sawBody {
		return nil, errNoBody
	}
	return paragraphs, nil
}

// paragraphText consumes tokens up to and including the end of the current
// paragraph element.
func paragraphText(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if !isWord(el.Name) {
				depth++
				continue
			}
			switch el.Name.Local {
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &el); err != nil {
					return "", err
				}
				b.WriteString(s)
				continue
			case "tab":
				b.WriteByte('\t')
			case "cr":
				b.WriteByte('\n')
			case "br":
				if breakType(el) == "textWrapping" {
					b.WriteByte('\n')
				}
			case "noBreakHyphen":
				b.WriteByte('-')
			case "txbxContent":
			default:
				depth++
				continue
			}
			if err := dec.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			depth--
		}
	}
	return b.String(), nil
}

func breakType(el xml.StartElement) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == "type" {
			return attr.Value
		}
	}
	return "textWrapping"
}

type coreXML struct {
	Title          string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator        string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Description    string `xml:"http://purl.org/dc/elements/1.1/ description"`
	Subject        string `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Identifier     string `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Language       string `xml:"http://purl.org/dc/elements/1.1/ language"`
	Created        string `xml:"http://purl.org/dc/terms/ created"`
	Modified       string `xml:"http://purl.org/dc/terms/ modified"`
	LastModifiedBy string `xml:"http://schemas.openxmlformats.org/package/2006/metadata/core-properties lastModifiedBy"`
	Category       string `xml:"http://schemas.openxmlformats.org/package/2006/metadata/core-properties category"`
	Keywords       string `xml:"http://schemas.openxmlformats.org/package/2006/metadata/core-properties keywords"`
	Version        string `xml:"http://schemas.openxmlformats.org/package/2006/metadata/core-properties version"`
	Revision       string `xml:"http://schemas.openxmlformats.org/package/2006/metadata/core-properties revision"`
	ContentStatus  string `xml:"http://schemas.openxmlformats.org/package/2006/metadata/core-properties contentStatus"`
}

// coreProperties reads the core properties part. A package without one has
// no metadata.
func (p *docxPackage) coreProperties(name string) (models.Metadata, error) {
	meta := models.Metadata{}
	rc, ok, err := p.open(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return meta, nil
	}
	defer rc.Close()

	var core coreXML
	if err := xml.NewDecoder(rc).Decode(&core); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	values := map[string]string{
		"title":            core.Title,
		"author":           core.Creator,
		"created":          formatTimestamp(core.Created),
		"modified":         formatTimestamp(core.Modified),
		"last_modified_by": core.LastModifiedBy,
		"description":      core.Description,
		"category":         core.Category,
		"comments":         core.Description,
		"subject":          core.Subject,
		"keywords":         core.Keywords,
		"version":          core.Version,
		"revision":         formatRevision(core.Revision),
		"identifier":       core.Identifier,
		"language":         core.Language,
		"content_status":   core.ContentStatus,
	}
	for _, key := range models.CorePropertyNames {
		if v := values[key]; v != "" {
			meta[key] = v
		}
	}
	return meta, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// formatTimestamp renders a W3CDTF value as "2006-01-02 15:04:05+00:00" in
// UTC. Values that do not parse are returned trimmed.
func formatTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format("2006-01-02 15:04:05") + "+00:00"
		}
	}
	return raw
}

// formatRevision keeps only positive integer revisions.
func formatRevision(raw string) string {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
