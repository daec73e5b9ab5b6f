package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/dbx"
	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/server/config"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/documents"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/signatures"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MaxUploadSize = 1 << 20
	return cfg
}

// memStore is an in-memory database shared by the fake repositories.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	docs   map[string]*models.Document
	sigs   map[string]*models.Signature
	events []*models.AuditEvent
	seq    int64

	docErr      error
	sigErr      error
	auditErr    error
	markSignErr error
	markCalled  int

	// beforeSigDelete runs under mu ahead of a signature delete.
	beforeSigDelete func(m *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		users: map[string]*models.User{},
		docs:  map[string]*models.Document{},
		sigs:  map[string]*models.Signature{},
	}
}

// nextID hands out uuids like the database does and advances seq, which
// orders signatures created in the same instant.
func (m *memStore) nextID() string {
	m.seq++
	return uuid.NewString()
}

// addDocument stores a copy of doc and returns it.
func (m *memStore) addDocument(doc models.Document) *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = m.nextID()
	}
	m.docs[doc.ID] = &doc
	return &doc
}

func (m *memStore) document(id string) *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

type fakeRepoManager struct {
	store *memStore
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return &fakeUsers{s: f.store} }
func (f *fakeRepoManager) Documents(dbx.DBTX) documents.Repository      { return &fakeDocuments{s: f.store} }
func (f *fakeRepoManager) Signatures(dbx.DBTX) signatures.Repository    { return &fakeSignatures{s: f.store} }
func (f *fakeRepoManager) AuditLog(dbx.DBTX) auditlog.Repository        { return &fakeAudit{s: f.store} }

type fakeUsers struct {
	users.Repository
	s *memStore
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, existing := range f.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *u
	cp.ID = f.s.nextID()
	cp.CreatedAt = time.Now()
	f.s.users[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeDocuments struct {
	documents.Repository
	s *memStore
}

func (f *fakeDocuments) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.docErr != nil {
		return nil, f.s.docErr
	}
	cp := *doc
	cp.ID = f.s.nextID()
	cp.UploadedAt = time.Now()
	cp.LastAccessedAt = cp.UploadedAt
	f.s.docs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeDocuments) GetByID(ctx context.Context, id string) (*models.Document, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	d, ok := f.s.docs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocuments) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Document{}
	for _, d := range f.s.docs {
		if d.OwnerID == ownerID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDocuments) Touch(ctx context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if d, ok := f.s.docs[id]; ok {
		d.LastAccessedAt = time.Now()
	}
	return nil
}

func (f *fakeDocuments) Delete(ctx context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.docs[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.docs, id)
	for sid, sig := range f.s.sigs {
		if sig.DocumentID == id {
			delete(f.s.sigs, sid)
		}
	}
	return nil
}

func (f *fakeDocuments) MarkFinalized(ctx context.Context, id, finalizedPath string, signatureCount int) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.markCalled++
	if f.s.docErr != nil {
		return false, f.s.docErr
	}
	d, ok := f.s.docs[id]
	if !ok || d.IsFinalized {
		return false, nil
	}
	now := time.Now()
	d.IsFinalized = true
	d.FinalizedPath = finalizedPath
	d.FinalizedAt = &now
	d.SignatureCount = signatureCount
	return true, nil
}

type fakeSignatures struct {
	signatures.Repository
	s *memStore
}

func (f *fakeSignatures) Create(ctx context.Context, sig *models.Signature) (*models.Signature, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.sigErr != nil {
		return nil, f.s.sigErr
	}
	d, ok := f.s.docs[sig.DocumentID]
	if !ok || d.IsFinalized {
		return nil, common.ErrAlreadyFinalized
	}
	cp := *sig
	cp.ID = f.s.nextID()
	cp.Seq = f.s.seq
	cp.CreatedAt = time.Now()
	f.s.sigs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeSignatures) GetByID(ctx context.Context, id string) (*models.Signature, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	sig, ok := f.s.sigs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *sig
	return &cp, nil
}

func (f *fakeSignatures) ListByDocument(ctx context.Context, documentID string) ([]*models.Signature, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.sigErr != nil {
		return nil, f.s.sigErr
	}
	out := []*models.Signature{}
	for _, sig := range f.s.sigs {
		if sig.DocumentID == documentID {
			cp := *sig
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (f *fakeSignatures) Delete(ctx context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.beforeSigDelete != nil {
		f.s.beforeSigDelete(f.s)
	}
	sig, ok := f.s.sigs[id]
	if !ok {
		return common.ErrorNotFound
	}
	if d, ok := f.s.docs[sig.DocumentID]; ok && d.IsFinalized {
		return common.ErrAlreadyFinalized
	}
	delete(f.s.sigs, id)
	return nil
}

func (f *fakeSignatures) MarkSigned(ctx context.Context, documentID string, ids []string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.markSignErr != nil {
		return 0, f.s.markSignErr
	}
	var n int64
	for _, id := range ids {
		sig, ok := f.s.sigs[id]
		if ok && sig.DocumentID == documentID && sig.Status == models.StatusPending {
			sig.Status = models.StatusSigned
			n++
		}
	}
	return n, nil
}

type fakeAudit struct {
	auditlog.Repository
	s *memStore
}

func (f *fakeAudit) Create(ctx context.Context, ev *models.AuditEvent) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.auditErr != nil {
		return f.s.auditErr
	}
	f.s.events = append(f.s.events, ev)
	return nil
}

func (f *fakeAudit) ListByDocument(ctx context.Context, documentID string) ([]*models.AuditEvent, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.AuditEvent{}
	for _, ev := range f.s.events {
		if ev.DocumentID == documentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// memStorage is an in-memory storage.Storage.
type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	putErr  error
	delErr  error
	deleted []string
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (m *memStorage) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if m.putErr != nil {
		return 0, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return int64(len(data)), nil
}

func (m *memStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.files, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok, nil
}

func (m *memStorage) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	return data, ok
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// recorder captures audit events synchronously.
type recorder struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (r *recorder) Record(ctx context.Context, ev *models.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Action)
	}
	return out
}

func (r *recorder) last(t *testing.T) *models.AuditEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatalf("no audit events recorded")
	}
	return r.events[len(r.events)-1]
}

// env wires every service against the fakes.
type env struct {
	store    *memStore
	files    *memStorage
	audit    *recorder
	cfg      *config.Config
	docs     *DocumentService
	sigs     *SignatureService
	finalize *FinalizeService
	users    *UserService
}

func newEnv(t *testing.T, r Renderer) *env {
	t.Helper()
	e := &env{store: newMemStore(), files: newMemStorage(), audit: &recorder{}, cfg: testConfig()}
	rm := &fakeRepoManager{store: e.store}
	log := discardLogger()
	e.docs = NewDocumentService(nil, rm, e.files, e.audit, log, e.cfg)
	e.sigs = NewSignatureService(nil, rm, e.audit, log)
	e.finalize = NewFinalizeService(nil, rm, e.files, r, e.audit, log, e.cfg)
	e.finalize.withTx = func(ctx context.Context, fn func(context.Context, dbx.DBTX) error) error {
		return fn(ctx, nil)
	}
	e.users = NewUserService(nil, rm, e.cfg)
	e.users.bcryptCost = 4
	return e
}

// failingUsersManager returns a users repository that always fails.
type failingUsersManager struct {
	fakeRepoManager
}

func (f *failingUsersManager) Users(dbx.DBTX) users.Repository { return failingUsers{} }

type failingUsers struct {
	users.Repository
}

func (failingUsers) Create(context.Context, *models.User) (*models.User, error) { return nil, errBoom{} }
func (failingUsers) GetByEmail(context.Context, string) (*models.User, error)   { return nil, errBoom{} }
