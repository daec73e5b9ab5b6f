package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/server/config"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
	"github.com/dmitrijs2005/pdfsigner/internal/server/services"
	"github.com/dmitrijs2005/pdfsigner/internal/server/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	validSession = "session-token"
	validLink    = "link-token"
	ownerID      = "owner-1"
	linkDocID    = "doc-link"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeUsers struct {
	register func(email, password string) (*models.User, error)
	login    func(email, password string) (string, error)
}

func (f *fakeUsers) Authenticate(token string) (string, error) {
	if token == validSession {
		return ownerID, nil
	}
	return "", common.ErrInvalidToken
}

func (f *fakeUsers) Register(_ context.Context, email, password string) (*models.User, error) {
	if f.register != nil {
		return f.register(email, password)
	}
	return &models.User{ID: "u-1", Email: email, CreatedAt: time.Now()}, nil
}

func (f *fakeUsers) Login(_ context.Context, email, password string) (string, error) {
	if f.login != nil {
		return f.login(email, password)
	}
	return validSession, nil
}

type fakeDocs struct {
	upload func(actor services.Actor, in services.UploadInput) (*models.Document, error)
	get    func(actor services.Actor, id string) (*models.Document, error)
	del    func(actor services.Actor, id string) error

	uploaded []byte
}

func (f *fakeDocs) Upload(_ context.Context, actor services.Actor, in services.UploadInput) (*models.Document, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.uploaded = data
	if f.upload != nil {
		return f.upload(actor, in)
	}
	return &models.Document{
		ID:          "doc-1",
		OwnerID:     actor.UserID,
		FileName:    in.FileName,
		StoragePath: "/uploads/pdfs/abc.pdf",
		Size:        int64(len(data)),
		MimeType:    in.MimeType,
		Metadata:    models.Metadata{Pages: 2},
	}, nil
}

func (f *fakeDocs) List(_ context.Context, actor services.Actor) ([]*models.Document, error) {
	return []*models.Document{
		{ID: "doc-1", OwnerID: actor.UserID, FileName: "a.pdf", StoragePath: "/uploads/pdfs/a.pdf"},
		{ID: "doc-2", OwnerID: actor.UserID, FileName: "b.pdf", StoragePath: "/uploads/pdfs/b.pdf",
			IsFinalized: true, FinalizedPath: "/uploads/finalized/b.pdf"},
	}, nil
}

func (f *fakeDocs) Get(_ context.Context, actor services.Actor, id string) (*models.Document, error) {
	if f.get != nil {
		return f.get(actor, id)
	}
	return &models.Document{ID: id, OwnerID: actor.UserID, StoragePath: "/uploads/pdfs/x.pdf"}, nil
}

func (f *fakeDocs) Delete(_ context.Context, actor services.Actor, id string) error {
	if f.del != nil {
		return f.del(actor, id)
	}
	return nil
}

func (f *fakeDocs) IssuePublicLink(_ context.Context, _ services.Actor, id string) (*services.PublicLink, error) {
	return &services.PublicLink{
		Token:     validLink,
		URL:       "http://localhost:3000/public-sign/" + validLink,
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeDocs) ResolveLink(token, ip string) (services.Actor, error) {
	if token != validLink {
		return services.Actor{}, common.ErrInvalidToken
	}
	return services.LinkActor(linkDocID, ip), nil
}

func (f *fakeDocs) GetForLink(ctx context.Context, token, ip string) (*models.Document, services.Actor, error) {
	actor, err := f.ResolveLink(token, ip)
	if err != nil {
		return nil, services.Actor{}, err
	}
	return &models.Document{ID: actor.LinkDocumentID, OwnerID: ownerID, StoragePath: "/uploads/pdfs/l.pdf"}, actor, nil
}

type fakeSigs struct {
	create func(actor services.Actor, in services.CreateSignatureInput) (*models.Signature, error)

	lastActor  services.Actor
	lastDelete string
}

func (f *fakeSigs) Create(_ context.Context, actor services.Actor, in services.CreateSignatureInput) (*models.Signature, error) {
	f.lastActor = actor
	if f.create != nil {
		return f.create(actor, in)
	}
	docID := in.DocumentID
	if actor.Public() {
		docID = actor.LinkDocumentID
	}
	return &models.Signature{
		ID:         "sig-1",
		DocumentID: docID,
		AuthorID:   actor.UserID,
		Type:       models.SignatureTyped,
		Content:    &models.TypedContent{Text: "Jane Doe", Font: "Helvetica", FontSize: 18, Color: "#ff0000"},
		Page:       *in.Page,
		X:          *in.X,
		Y:          *in.Y,
		Status:     models.StatusPending,
	}, nil
}

func (f *fakeSigs) ListByDocument(_ context.Context, actor services.Actor, documentID string) ([]*models.Signature, error) {
	f.lastActor = actor
	return []*models.Signature{{
		ID:         "sig-1",
		DocumentID: documentID,
		Type:       models.SignatureTyped,
		Content:    &models.TypedContent{Text: "Jane Doe", Font: "Helvetica", FontSize: 18, Color: "#000000"},
		Page:       1,
		X:          0.5,
		Y:          0.9,
		Status:     models.StatusPending,
	}}, nil
}

func (f *fakeSigs) Delete(_ context.Context, actor services.Actor, id string) error {
	f.lastActor = actor
	f.lastDelete = id
	return nil
}

type fakeFinalizer struct {
	err       error
	lastActor services.Actor
	lastDocID string
}

func (f *fakeFinalizer) Finalize(_ context.Context, actor services.Actor, documentID string) (*services.FinalizeResult, error) {
	f.lastActor = actor
	f.lastDocID = documentID
	if f.err != nil {
		return nil, f.err
	}
	return &services.FinalizeResult{
		Document: &models.Document{
			ID:            documentID,
			FileName:      "contract.pdf",
			StoragePath:   "/uploads/pdfs/c.pdf",
			IsFinalized:   true,
			FinalizedPath: "/uploads/finalized/f.pdf",
		},
		URL:            "http://localhost:5000/uploads/finalized/f.pdf",
		FileName:       "signed_contract.pdf",
		SignatureCount: 3,
		Rendered:       2,
		Skipped:        1,
	}, nil
}

type fakeAudit struct{}

func (fakeAudit) ListByDocument(_ context.Context, actor services.Actor, documentID string) ([]*models.AuditEvent, error) {
	if actor.UserID != ownerID {
		return nil, common.ErrorForbidden
	}
	return []*models.AuditEvent{{
		ID: "ev-1", UserID: actor.UserID, DocumentID: documentID, Action: models.ActionDocumentUploaded, IP: actor.IP,
	}}, nil
}

type env struct {
	router    *gin.Engine
	users     *fakeUsers
	docs      *fakeDocs
	sigs      *fakeSigs
	finalizer *fakeFinalizer
	files     storage.Storage
}

func newEnv(t *testing.T) *env {
	t.Helper()

	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return newEnvWithFiles(t, files)
}

func newEnvWithFiles(t *testing.T, files storage.Storage) *env {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MaxUploadSize = 1 << 20

	e := &env{
		users:     &fakeUsers{},
		docs:      &fakeDocs{},
		sigs:      &fakeSigs{},
		finalizer: &fakeFinalizer{},
		files:     files,
	}
	log := discardLogger()
	h := NewHandler(Services{
		Documents:  e.docs,
		Signatures: e.sigs,
		Finalize:   e.finalizer,
		Users:      e.users,
		Audit:      fakeAudit{},
	}, files, log, cfg)
	e.router = NewRouter(h, log, cfg)
	return e
}

func (e *env) do(t *testing.T, method, target string, body any, session bool) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session {
		req.Header.Set(common.AuthorizationHeader, "Bearer "+validSession)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field"`
	RequestID string `json:"request_id"`
}

func okHandler(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
