package models

import "time"

const (
	ActionDocumentUploaded  = "DOCUMENT_UPLOADED"
	ActionDocumentDeleted   = "DOCUMENT_DELETED"
	ActionPublicLinkIssued  = "PUBLIC_LINK_ISSUED"
	ActionSignatureAdded    = "SIGNATURE_ADDED"
	ActionSignatureRemoved  = "SIGNATURE_REMOVED"
	ActionDocumentFinalized = "PDF_FINALIZED"
)

// AuditEvent records who did what to a document. UserID is empty for
// actions performed through a public link.
type AuditEvent struct {
	ID         string
	UserID     string
	DocumentID string
	Action     string
	IP         string
	Timestamp  time.Time
	Meta       map[string]any
}
