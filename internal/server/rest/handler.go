// Package rest exposes the signing service over HTTP using gin.
package rest

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/server/config"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
	"github.com/dmitrijs2005/pdfsigner/internal/server/services"
	"github.com/dmitrijs2005/pdfsigner/internal/server/storage"
)

type DocumentService interface {
	Upload(ctx context.Context, actor services.Actor, in services.UploadInput) (*models.Document, error)
	List(ctx context.Context, actor services.Actor) ([]*models.Document, error)
	Get(ctx context.Context, actor services.Actor, id string) (*models.Document, error)
	Delete(ctx context.Context, actor services.Actor, id string) error
	IssuePublicLink(ctx context.Context, actor services.Actor, id string) (*services.PublicLink, error)
	ResolveLink(token, ip string) (services.Actor, error)
	GetForLink(ctx context.Context, token, ip string) (*models.Document, services.Actor, error)
}

type SignatureService interface {
	Create(ctx context.Context, actor services.Actor, in services.CreateSignatureInput) (*models.Signature, error)
	ListByDocument(ctx context.Context, actor services.Actor, documentID string) ([]*models.Signature, error)
	Delete(ctx context.Context, actor services.Actor, id string) error
}

type FinalizeService interface {
	Finalize(ctx context.Context, actor services.Actor, documentID string) (*services.FinalizeResult, error)
}

type UserService interface {
	Authenticator
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
}

type AuditService interface {
	ListByDocument(ctx context.Context, actor services.Actor, documentID string) ([]*models.AuditEvent, error)
}

// Services groups the collaborators the handlers call into.
type Services struct {
	Documents  DocumentService
	Signatures SignatureService
	Finalize   FinalizeService
	Users      UserService
	Audit      AuditService
}

type Handler struct {
	docs      DocumentService
	sigs      SignatureService
	finalizer FinalizeService
	users     UserService
	audit     AuditService
	files     storage.Storage
	logger    logging.Logger

	baseURL       string
	maxUploadSize int64
}

func NewHandler(s Services, files storage.Storage, logger logging.Logger, cfg *config.Config) *Handler {
	return &Handler{
		docs:          s.Documents,
		sigs:          s.Signatures,
		finalizer:     s.Finalize,
		users:         s.Users,
		audit:         s.Audit,
		files:         files,
		logger:        logger.With("module", "rest"),
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		maxUploadSize: cfg.MaxUploadSize,
	}
}

func (h *Handler) actor(c *gin.Context) services.Actor {
	return services.UserActor(GetUserID(c), c.ClientIP())
}

// linkActor resolves the :token path parameter. It writes the error
// response itself and reports false when the token is not usable.
func (h *Handler) linkActor(c *gin.Context) (services.Actor, bool) {
	actor, err := h.docs.ResolveLink(c.Param("token"), c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return services.Actor{}, false
	}
	return actor, true
}
