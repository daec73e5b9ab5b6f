package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/pdfsigner/internal/server/services"
)

func (h *Handler) CreateSignature(c *gin.Context) {
	h.createSignature(c, h.actor(c))
}

func (h *Handler) ListSignatures(c *gin.Context) {
	sigs, err := h.sigs.ListByDocument(c.Request.Context(), h.actor(c), c.Param("documentId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp, err := signatureList(sigs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteSignature(c *gin.Context) {
	h.deleteSignature(c, h.actor(c))
}

func (h *Handler) Finalize(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "body", "invalid JSON body")
		return
	}
	if req.DocumentID == "" {
		h.badRequest(c, "documentId", "is required")
		return
	}
	h.finalize(c, h.actor(c), req.DocumentID)
}

func (h *Handler) createSignature(c *gin.Context, actor services.Actor) {
	var req signatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "body", "invalid JSON body")
		return
	}

	sig, err := h.sigs.Create(c.Request.Context(), actor, req.input())
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp, err := signature(sig)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) deleteSignature(c *gin.Context, actor services.Actor) {
	if err := h.sigs.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "signature deleted"})
}

func (h *Handler) finalize(c *gin.Context, actor services.Actor, documentID string) {
	res, err := h.finalizer.Finalize(c.Request.Context(), actor, documentID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, finalizeResponse{
		Message:        "document finalized",
		URL:            res.URL,
		FileName:       res.FileName,
		SignatureCount: res.SignatureCount,
		Rendered:       res.Rendered,
		Skipped:        res.Skipped,
		Document:       h.document(res.Document),
	})
}
