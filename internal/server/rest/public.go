package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers behind /api/public/:token. The token alone grants access to the
// one document it names.

func (h *Handler) GetPublicDocument(c *gin.Context) {
	ctx := c.Request.Context()

	doc, actor, err := h.docs.GetForLink(ctx, c.Param("token"), c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	sigs, err := h.sigs.ListByDocument(ctx, actor, doc.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	list, err := signatureList(sigs)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, publicDocumentResponse{Document: h.document(doc), Signatures: list})
}

func (h *Handler) CreatePublicSignature(c *gin.Context) {
	if actor, ok := h.linkActor(c); ok {
		h.createSignature(c, actor)
	}
}

func (h *Handler) DeletePublicSignature(c *gin.Context) {
	if actor, ok := h.linkActor(c); ok {
		h.deleteSignature(c, actor)
	}
}

func (h *Handler) FinalizePublic(c *gin.Context) {
	if actor, ok := h.linkActor(c); ok {
		h.finalize(c, actor, actor.LinkDocumentID)
	}
}
