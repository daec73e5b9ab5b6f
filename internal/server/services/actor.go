package services

import (
	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

// Actor is whoever performs an operation: a signed-in user, or the holder of
// a public link for exactly one document.
type Actor struct {
	UserID string
	// LinkDocumentID is set for public link holders only.
	LinkDocumentID string
	IP             string
}

func UserActor(userID, ip string) Actor {
	return Actor{UserID: userID, IP: ip}
}

func LinkActor(documentID, ip string) Actor {
	return Actor{LinkDocumentID: documentID, IP: ip}
}

// Public reports whether the actor came in through a public link.
func (a Actor) Public() bool { return a.UserID == "" && a.LinkDocumentID != "" }

// authorize checks that the actor may work on doc. Owners may do anything;
// link holders only touch the document their link names.
func (a Actor) authorize(doc *models.Document) error {
	switch {
	case a.UserID != "":
		if doc.OwnerID != a.UserID {
			return common.ErrorForbidden
		}
		return nil
	case a.LinkDocumentID != "":
		if doc.ID != a.LinkDocumentID {
			return common.ErrorForbidden
		}
		return nil
	default:
		return common.ErrorUnauthorized
	}
}

// authorizeOwner is authorize for operations public links never grant.
func (a Actor) authorizeOwner(doc *models.Document) error {
	if a.UserID == "" {
		if a.LinkDocumentID == "" {
			return common.ErrorUnauthorized
		}
		return common.ErrorForbidden
	}
	return a.authorize(doc)
}

// event starts an audit event attributed to the actor.
func (a Actor) event(action, documentID string, meta map[string]any) *models.AuditEvent {
	return &models.AuditEvent{
		UserID:     a.UserID,
		DocumentID: documentID,
		Action:     action,
		IP:         a.IP,
		Meta:       meta,
	}
}
