package models

import (
	"strings"
	"time"
)

type SignatureType string

const (
	SignatureTyped SignatureType = "Typed"
	SignatureDrawn SignatureType = "Drawn"
	SignatureImage SignatureType = "Image"
)

// ParseSignatureType accepts the canonical names case-insensitively.
func ParseSignatureType(s string) (SignatureType, bool) {
	for _, t := range []SignatureType{SignatureTyped, SignatureDrawn, SignatureImage} {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return "", false
}

type SignatureStatus string

const (
	StatusPending SignatureStatus = "pending"
	StatusSigned  SignatureStatus = "signed"
)

// Signature is a visual stamp placed on one page of a document.
//
// X and Y are fractions of the page as displayed, with Y measured from the
// top edge. Page is 1-based.
type Signature struct {
	ID         string
	DocumentID string
	// AuthorID is empty for placements made through a public link.
	AuthorID string
	Type     SignatureType
	Content  Content
	Page     int
	X        float64
	Y        float64
	Status   SignatureStatus

	CreatedAt time.Time
	// Seq breaks ties between signatures created within the same instant.
	Seq int64
}
