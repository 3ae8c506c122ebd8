// Package rag builds and serves the resident retrieval index over a user's
// uploaded documents. PDF, DOCX, and XLSX files are parsed into units (pages,
// sheets, whole documents), oversized units are chunked on token budgets,
// chunks are embedded in parallel, and the vectors land in an in-process
// chromem collection. A single index is resident at a time; filesystem changes
// under the upload directory invalidate it so the next retrieval rebuilds.
package rag

import "errors"

// ErrNoDocuments signals that a build found nothing to index: the corpus is
// empty or every document failed to parse. Callers surface this as an
// availability message rather than a hard failure.
var ErrNoDocuments = errors.New("no searchable documents")

// DefaultTopK is the number of matches surfaced to the model per search.
const DefaultTopK = 3

// Unit is one parsed slice of a source document: a PDF page, a spreadsheet
// sheet, or a whole Word document. Oversized units are split into further
// units by the chunker before indexing.
type Unit struct {
	// Source is the base file name of the originating document.
	Source string
	// Locator places the unit within its document: a page number, a sheet
	// name, or "1" for single-unit documents. Chunked units carry a
	// ", part N" suffix.
	Locator string
	Content string
}

// SearchResult is one retrieval hit, ordered by descending similarity.
type SearchResult struct {
	Source  string
	Locator string
	Content string
	Score   float32
}
