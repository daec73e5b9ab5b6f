package api

import (
	"encoding/json"
	"time"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Metadata struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Pages  int    `json:"pages"`
}

type Document struct {
	ID             string    `json:"id"`
	FileName       string    `json:"filename"`
	URL            string    `json:"url"`
	Size           int64     `json:"size"`
	UploadedAt     time.Time `json:"uploadedAt"`
	Metadata       Metadata  `json:"metadata"`
	IsFinalized    bool      `json:"isFinalized"`
	FinalizedURL   string    `json:"finalizedUrl,omitempty"`
	SignatureCount int       `json:"signatureCount"`
}

type PublicLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TypedContent is the content of a "Typed" signature.
type TypedContent struct {
	Text     string  `json:"text"`
	Font     string  `json:"font,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Color    string  `json:"color,omitempty"`
}

// ImageContent is the content of an "Image" or "Drawn" signature. Image is
// a data URL or bare base64.
type ImageContent struct {
	Image string  `json:"image"`
	Width float64 `json:"width,omitempty"`
}

type SignatureRequest struct {
	DocumentID string          `json:"documentId"`
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content"`
	Page       int             `json:"page"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
}

type Signature struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content"`
	Page       int             `json:"page"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type FinalizeResult struct {
	URL            string `json:"url"`
	FileName       string `json:"filename"`
	SignatureCount int    `json:"signatureCount"`
	Rendered       int    `json:"rendered"`
	Skipped        int    `json:"skipped"`
}
