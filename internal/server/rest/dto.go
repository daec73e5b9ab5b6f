package rest

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
	"github.com/dmitrijs2005/pdfsigner/internal/server/services"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type documentResponse struct {
	ID             string          `json:"id"`
	FileName       string          `json:"filename"`
	FilePath       string          `json:"filepath"`
	URL            string          `json:"url"`
	Size           int64           `json:"size"`
	MimeType       string          `json:"mimeType"`
	UploadedAt     time.Time       `json:"uploadedAt"`
	LastAccessedAt time.Time       `json:"lastAccessedAt"`
	Metadata       models.Metadata `json:"metadata"`
	IsFinalized    bool            `json:"isFinalized"`
	FinalizedPath  string          `json:"finalizedPath,omitempty"`
	FinalizedURL   string          `json:"finalizedUrl,omitempty"`
	FinalizedAt    *time.Time      `json:"finalizedAt,omitempty"`
	SignatureCount int             `json:"signatureCount"`
}

func (h *Handler) document(d *models.Document) documentResponse {
	resp := documentResponse{
		ID:             d.ID,
		FileName:       d.FileName,
		FilePath:       d.StoragePath,
		URL:            h.baseURL + d.StoragePath,
		Size:           d.Size,
		MimeType:       d.MimeType,
		UploadedAt:     d.UploadedAt,
		LastAccessedAt: d.LastAccessedAt,
		Metadata:       d.Metadata,
		IsFinalized:    d.IsFinalized,
		FinalizedAt:    d.FinalizedAt,
		SignatureCount: d.SignatureCount,
	}
	if d.FinalizedPath != "" {
		resp.FinalizedPath = d.FinalizedPath
		resp.FinalizedURL = h.baseURL + d.FinalizedPath
	}
	return resp
}

func (h *Handler) documents(docs []*models.Document) []documentResponse {
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, h.document(d))
	}
	return out
}

// signatureRequest is the body of both the owner and the public create
// endpoints. DocumentID is ignored on the public one unless it disagrees
// with the link.
type signatureRequest struct {
	DocumentID string          `json:"documentId"`
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content"`
	Page       *int            `json:"page"`
	X          *float64        `json:"x"`
	Y          *float64        `json:"y"`
}

func (r signatureRequest) input() services.CreateSignatureInput {
	return services.CreateSignatureInput{
		DocumentID: r.DocumentID,
		Type:       r.Type,
		Content:    r.Content,
		Page:       r.Page,
		X:          r.X,
		Y:          r.Y,
	}
}

type signatureResponse struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	UserID     string          `json:"userId,omitempty"`
	Type       string          `json:"type"`
	Content    json.RawMessage `json:"content"`
	Page       int             `json:"page"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// signature renders s. A row whose stored content could not be decoded is
// listed with null content.
func signature(s *models.Signature) (signatureResponse, error) {
	content := json.RawMessage("null")
	if s.Content != nil {
		raw, err := models.EncodeContent(s.Content)
		if err != nil {
			return signatureResponse{}, err
		}
		content = raw
	}
	return signatureResponse{
		ID:         s.ID,
		DocumentID: s.DocumentID,
		UserID:     s.AuthorID,
		Type:       string(s.Type),
		Content:    content,
		Page:       s.Page,
		X:          s.X,
		Y:          s.Y,
		Status:     string(s.Status),
		CreatedAt:  s.CreatedAt,
	}, nil
}

func signatureList(sigs []*models.Signature) ([]signatureResponse, error) {
	out := make([]signatureResponse, 0, len(sigs))
	for _, s := range sigs {
		r, err := signature(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

type finalizeRequest struct {
	DocumentID string `json:"documentId"`
}

type finalizeResponse struct {
	Message        string           `json:"message"`
	URL            string           `json:"url"`
	FileName       string           `json:"filename"`
	SignatureCount int              `json:"signatureCount"`
	Rendered       int              `json:"rendered"`
	Skipped        int              `json:"skipped"`
	Document       documentResponse `json:"document"`
}

type publicLinkResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type publicDocumentResponse struct {
	Document   documentResponse    `json:"document"`
	Signatures []signatureResponse `json:"signatures"`
}

type auditEventResponse struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId,omitempty"`
	DocumentID string         `json:"documentId"`
	Action     string         `json:"action"`
	IP         string         `json:"ip,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Meta       map[string]any `json:"meta,omitempty"`
}

func auditEvents(events []*models.AuditEvent) []auditEventResponse {
	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:         e.ID,
			UserID:     e.UserID,
			DocumentID: e.DocumentID,
			Action:     e.Action,
			IP:         e.IP,
			Timestamp:  e.Timestamp,
			Meta:       e.Meta,
		})
	}
	return out
}
