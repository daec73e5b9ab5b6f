package services

import (
	"bytes"

	pdflib "github.com/digitorus/pdf"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

var errNotReadable = common.NewValidationError("pdf", "file is not a readable PDF")

// Inspect reads the page count and the document information dictionary of
// an uploaded PDF. Files that cannot be parsed, have no pages, or are
// encrypted are rejected with a validation error.
func Inspect(data []byte) (meta models.Metadata, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			meta, err = models.Metadata{}, errNotReadable
		}
	}()

	rdr, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.Metadata{}, errNotReadable
	}
	if !rdr.Trailer().Key("Encrypt").IsNull() {
		return models.Metadata{}, common.NewValidationError("pdf", "encrypted PDF files are not supported")
	}

	meta.Pages = rdr.NumPage()
	if meta.Pages < 1 {
		return models.Metadata{}, common.NewValidationError("pdf", "document has no pages")
	}

	info := rdr.Trailer().Key("Info")
	meta.Title = info.Key("Title").Text()
	meta.Author = info.Key("Author").Text()
	return meta, nil
}
