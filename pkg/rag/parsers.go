package rag

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// Parser extracts the text units of one document format.
type Parser interface {
	Parse(path string) ([]Unit, error)
	Extensions() []string
}

// ParserRegistry routes files to the parser for their extension.
type ParserRegistry struct {
	byExt map[string]Parser
}

// NewParserRegistry returns a registry with the built-in PDF, DOCX, and XLSX
// parsers.
func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{byExt: make(map[string]Parser)}
	for _, p := range []Parser{&pdfParser{}, &docxParser{}, &xlsxParser{}} {
		for _, ext := range p.Extensions() {
			r.byExt[ext] = p
		}
	}
	return r
}

// CanParse reports whether a parser is registered for the file's extension.
func (r *ParserRegistry) CanParse(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the supported extensions, sorted.
func (r *ParserRegistry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse extracts the units of a single file.
func (r *ParserRegistry) Parse(path string) ([]Unit, error) {
	p, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("no parser for %s files", filepath.Ext(path))
	}
	return p.Parse(path)
}

// ParseAll parses every file, skipping documents that fail to parse. One
// corrupt upload must not take retrieval down for the rest of the corpus.
func (r *ParserRegistry) ParseAll(files []string) []Unit {
	var units []Unit
	for _, file := range files {
		parsed, err := r.Parse(file)
		if err != nil {
			slog.Warn("Skipping unparseable document", "file", file, "error", err)
			continue
		}
		units = append(units, parsed...)
	}
	return units
}

// pdfParser extracts one unit per non-empty page.
type pdfParser struct{}

func (p *pdfParser) Extensions() []string { return []string{".pdf"} }

func (p *pdfParser) Parse(path string) ([]Unit, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat PDF: %w", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse PDF: %w", err)
	}

	source := filepath.Base(path)
	var units []Unit
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("Skipping unreadable PDF page", "file", source, "page", pageNum, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		units = append(units, Unit{
			Source:  source,
			Locator: strconv.Itoa(pageNum),
			Content: text,
		})
	}
	return units, nil
}

// docxParser extracts the whole document as a single unit.
type docxParser struct{}

func (p *docxParser) Extensions() []string { return []string{".docx"} }

func (p *docxParser) Parse(path string) ([]Unit, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse DOCX: %w", err)
	}
	defer doc.Close()

	text := wordXMLToText(doc.Editable().GetContent())
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	return []Unit{{
		Source:  filepath.Base(path),
		Locator: "1",
		Content: text,
	}}, nil
}

// wordXMLToText strips WordprocessingML markup, keeping character data with
// paragraph and line breaks. GetContent returns the raw document XML.
func wordXMLToText(content string) string {
	decoder := xml.NewDecoder(strings.NewReader(content))
	var b strings.Builder
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			switch t.Name.Local {
			case "tab":
				b.WriteString("\t")
			case "br":
				b.WriteString("\n")
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// xlsxParser extracts one unit per non-empty sheet, rows joined with tabs.
type xlsxParser struct{}

func (p *xlsxParser) Extensions() []string { return []string{".xlsx"} }

func (p *xlsxParser) Parse(path string) ([]Unit, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse XLSX: %w", err)
	}
	defer f.Close()

	source := filepath.Base(path)
	var units []Unit
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			slog.Warn("Skipping unreadable sheet", "file", source, "sheet", sheet, "error", err)
			continue
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}

		units = append(units, Unit{
			Source:  source,
			Locator: sheet,
			Content: strings.Join(lines, "\n"),
		})
	}
	return units, nil
}
