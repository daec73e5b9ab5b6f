// Package models defines server-side data models persisted in the database.
package models

import "time"

// Metadata is extracted from the PDF at upload time.
type Metadata struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Pages  int    `json:"pages"`
}

// Document is an uploaded PDF and its finalization state.
type Document struct {
	ID      string
	OwnerID string
	// FileName is the client-supplied name, kept for display only.
	FileName string
	// StoragePath always lives under /uploads/pdfs/ and is never reused.
	StoragePath string
	Size        int64
	MimeType    string

	UploadedAt     time.Time
	LastAccessedAt time.Time

	IsFinalized bool
	// FinalizedPath is empty until finalize succeeds; then it lives under
	// /uploads/finalized/.
	FinalizedPath  string
	FinalizedAt    *time.Time
	SignatureCount int

	Metadata Metadata
}
