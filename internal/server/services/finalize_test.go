package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/pdf/pdftest"
	"github.com/dmitrijs2005/pdfsigner/internal/server/finalizer"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
	"github.com/dmitrijs2005/pdfsigner/internal/server/storage"
)

func realEngine() Renderer { return finalizer.NewEngine(discardLogger()) }

func TestFinalize_JaneDoe(t *testing.T) {
	e := newEnv(t, realEngine())
	original := pdftest.Build(pdftest.TwoPages(), pdftest.Options{})
	hash := sha256.Sum256(original)
	doc := upload(t, e, owner, original)

	content := []byte(`{"text":"Jane Doe","fontSize":18,"color":"#ff0000"}`)
	_, err := e.sigs.Create(context.Background(), owner, CreateSignatureInput{
		DocumentID: doc.ID, Type: "Typed", Content: content, Page: ptr(2), X: ptr(0.5), Y: ptr(0.9),
	})
	require.NoError(t, err)

	res, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SignatureCount)
	assert.Equal(t, 1, res.Rendered)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, "signed_contract.pdf", res.FileName)
	require.NoError(t, storage.ValidateFinalizedPath(res.Document.FinalizedPath))
	assert.Equal(t, "http://localhost:5000"+res.Document.FinalizedPath, res.URL)

	stored := e.store.document(doc.ID)
	assert.True(t, stored.IsFinalized)
	assert.Equal(t, res.Document.FinalizedPath, stored.FinalizedPath)
	assert.Equal(t, 1, stored.SignatureCount)
	sigs, err := e.sigs.ListByDocument(context.Background(), owner, doc.ID)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, models.StatusSigned, sigs[0].Status)

	// The original is untouched, in storage and in memory.
	kept, ok := e.files.get(storage.KeyFromPath(doc.StoragePath))
	require.True(t, ok)
	assert.Equal(t, hash, sha256.Sum256(kept))

	artifact, ok := e.files.get(storage.KeyFromPath(stored.FinalizedPath))
	require.True(t, ok)
	pageContent, _, err := pdftest.PageContent(artifact, 2)
	require.NoError(t, err)
	painting, err := pdftest.Interpret(pageContent)
	require.NoError(t, err)
	var found bool
	for _, run := range painting.Texts {
		if run.Text == "Jane Doe" {
			found = true
			assert.InDelta(t, 150, run.Matrix[4], 0.01)
			assert.InDelta(t, 50, run.Matrix[5], 0.01)
			assert.Equal(t, [3]float64{1, 0, 0}, run.Fill)
		}
	}
	assert.True(t, found)

	ev := e.audit.last(t)
	assert.Equal(t, models.ActionDocumentFinalized, ev.Action)
	assert.Equal(t, 1, ev.Meta["rendered"])
}

func TestFinalize_SecondAttemptRejected(t *testing.T) {
	e := newEnv(t, realEngine())
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))

	_, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	require.NoError(t, err)
	files := e.files.count()

	_, err = e.finalize.Finalize(context.Background(), owner, doc.ID)
	assert.ErrorIs(t, err, common.ErrAlreadyFinalized)
	assert.Equal(t, files, e.files.count(), "no second artifact")

	_, err = e.sigs.Create(context.Background(), owner, typedInput(doc.ID, 1, 0.5, 0.5, "late"))
	assert.ErrorIs(t, err, common.ErrAlreadyFinalized)
}

func TestFinalize_CountsSkippedSignatures(t *testing.T) {
	e := newEnv(t, realEngine())
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))

	for _, text := range []string{"kept", "   "} {
		_, err := e.sigs.Create(context.Background(), owner, typedInput(doc.ID, 1, 0.5, 0.5, text))
		require.NoError(t, err)
	}

	res, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SignatureCount)
	assert.Equal(t, 1, res.Rendered)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, e.store.document(doc.ID).SignatureCount)
}

func TestFinalize_PublicLink(t *testing.T) {
	e := newEnv(t, realEngine())
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))
	other := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))

	_, err := e.finalize.Finalize(context.Background(), LinkActor(other.ID, ""), doc.ID)
	assert.ErrorIs(t, err, common.ErrorForbidden)
	_, err = e.finalize.Finalize(context.Background(), UserActor("intruder", ""), doc.ID)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	res, err := e.finalize.Finalize(context.Background(), LinkActor(doc.ID, "9.9.9.9"), doc.ID)
	require.NoError(t, err)
	assert.True(t, res.Document.IsFinalized)
	assert.Equal(t, "9.9.9.9", e.audit.last(t).IP)
}

func TestFinalize_MissingDocumentOrFile(t *testing.T) {
	e := newEnv(t, realEngine())

	_, err := e.finalize.Finalize(context.Background(), owner, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	doc := e.store.addDocument(models.Document{OwnerID: "owner-1", StoragePath: storage.NewOriginalPath()})
	_, err = e.finalize.Finalize(context.Background(), owner, doc.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.False(t, e.store.document(doc.ID).IsFinalized)
}

func TestFinalize_UnreadableOriginalIsFatal(t *testing.T) {
	e := newEnv(t, realEngine())
	p := storage.NewOriginalPath()
	_, err := e.files.Put(context.Background(), storage.KeyFromPath(p), strings.NewReader("%PDF-1.7 garbage"))
	require.NoError(t, err)
	doc := e.store.addDocument(models.Document{OwnerID: "owner-1", StoragePath: p})

	_, err = e.finalize.Finalize(context.Background(), owner, doc.ID)
	assert.ErrorIs(t, err, common.ErrFatalIO)
	assert.False(t, e.store.document(doc.ID).IsFinalized)
	assert.Equal(t, 1, e.files.count(), "no artifact for a failed finalize")
}

func TestFinalize_RejectsStoredPathOutsideRoot(t *testing.T) {
	e := newEnv(t, realEngine())
	doc := e.store.addDocument(models.Document{OwnerID: "owner-1", StoragePath: "/uploads/pdfs/../../etc/passwd.pdf"})

	_, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	assert.ErrorIs(t, err, common.ErrFatalIO)
}

// flipRenderer finalizes the document behind the service's back, the way a
// second server instance would.
type flipRenderer struct {
	store *memStore
	docID string
}

func (f *flipRenderer) Render(ctx context.Context, original []byte, sigs []*models.Signature) (*finalizer.Result, error) {
	f.store.mu.Lock()
	f.store.docs[f.docID].IsFinalized = true
	f.store.mu.Unlock()
	return &finalizer.Result{Data: original}, nil
}

func TestFinalize_LostCompareAndSetRemovesArtifact(t *testing.T) {
	e := newEnv(t, nil)
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))
	e.finalize.renderer = &flipRenderer{store: e.store, docID: doc.ID}

	_, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	assert.ErrorIs(t, err, common.ErrAlreadyFinalized)
	assert.Equal(t, 1, e.files.count(), "only the original remains")
	require.Len(t, e.files.deleted, 1)
	assert.True(t, strings.HasPrefix(e.files.deleted[0], storage.FinalizedDir+"/"))
}

func TestFinalize_UpdateErrorRemovesArtifact(t *testing.T) {
	e := newEnv(t, realEngine())
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))
	e.store.mu.Lock()
	e.store.docErr = errBoom{}
	e.store.mu.Unlock()

	_, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, e.files.count())
}

func TestFinalize_MarkSignedErrorRemovesArtifact(t *testing.T) {
	e := newEnv(t, realEngine())
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))
	e.store.mu.Lock()
	e.store.markSignErr = errBoom{}
	e.store.mu.Unlock()

	_, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error updating document")
	assert.Equal(t, 1, e.files.count())
}

func TestFinalize_ConcurrentCallsProduceOneArtifact(t *testing.T) {
	e := newEnv(t, realEngine())
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))
	_, err := e.sigs.Create(context.Background(), owner, typedInput(doc.ID, 1, 0.5, 0.5, "x"))
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		if assert.ErrorIs(t, err, common.ErrAlreadyFinalized) {
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, rejected)
	assert.Equal(t, 2, e.files.count(), "original plus exactly one artifact")
	assert.Equal(t, 0, e.finalize.locks.size())
}

// gateRenderer blocks every render until release is closed.
type gateRenderer struct {
	mu      sync.Mutex
	active  int
	peak    int
	started chan struct{}
	release chan struct{}
}

func (g *gateRenderer) Render(ctx context.Context, original []byte, sigs []*models.Signature) (*finalizer.Result, error) {
	g.mu.Lock()
	g.active++
	g.peak = max(g.peak, g.active)
	g.mu.Unlock()

	g.started <- struct{}{}
	<-g.release

	g.mu.Lock()
	g.active--
	g.mu.Unlock()
	return &finalizer.Result{Data: original}, nil
}

func TestFinalize_BoundedPool(t *testing.T) {
	e := newEnv(t, nil)
	gate := &gateRenderer{started: make(chan struct{}, 10), release: make(chan struct{})}
	cfg := testConfig()
	cfg.MaxConcurrentFinalize = 2
	e.finalize = NewFinalizeService(nil, &fakeRepoManager{store: e.store}, e.files, gate, e.audit, discardLogger(), cfg)

	data := pdftest.Build(pdftest.TwoPages(), pdftest.Options{})
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, upload(t, e, owner, data).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.finalize.Finalize(context.Background(), owner, id)
			assert.NoError(t, err)
		}()
	}

	<-gate.started
	<-gate.started
	select {
	case <-gate.started:
		t.Fatal("a third finalize started while two were running")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	wg.Wait()
	assert.Equal(t, 2, gate.peak)
}

func TestFinalize_CancelledWhileWaiting(t *testing.T) {
	e := newEnv(t, nil)
	gate := &gateRenderer{started: make(chan struct{}, 1), release: make(chan struct{})}
	cfg := testConfig()
	cfg.MaxConcurrentFinalize = 1
	e.finalize = NewFinalizeService(nil, &fakeRepoManager{store: e.store}, e.files, gate, e.audit, discardLogger(), cfg)

	data := pdftest.Build(pdftest.TwoPages(), pdftest.Options{})
	busy := upload(t, e, owner, data)
	waiting := upload(t, e, owner, data)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.finalize.Finalize(context.Background(), owner, busy.ID)
	}()
	<-gate.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.finalize.Finalize(ctx, owner, waiting.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, e.store.document(waiting.ID).IsFinalized)

	close(gate.release)
	<-done
}

func TestFinalize_UndecodableSignatureIsSkipped(t *testing.T) {
	e := newEnv(t, realEngine())
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))
	good, err := e.sigs.Create(context.Background(), owner, typedInput(doc.ID, 1, 0.5, 0.5, "kept"))
	require.NoError(t, err)

	// What the repository returns for a row whose stored image no longer
	// decodes.
	e.store.mu.Lock()
	bad := &models.Signature{
		ID: e.store.nextID(), DocumentID: doc.ID, Type: models.SignatureImage,
		Page: 1, X: 0.2, Y: 0.2, Status: models.StatusPending, CreatedAt: time.Now(),
	}
	bad.Seq = e.store.seq
	e.store.sigs[bad.ID] = bad
	e.store.mu.Unlock()

	res, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SignatureCount)
	assert.Equal(t, 1, res.Rendered)
	assert.Equal(t, 1, res.Skipped)

	problems, ok := e.audit.last(t).Meta["problems"].([]string)
	require.True(t, ok)
	require.Len(t, problems, 1)
	assert.True(t, strings.HasPrefix(problems[0], bad.ID+": "), problems[0])
	assert.Equal(t, models.StatusSigned, e.store.sigs[good.ID].Status)
}

// mutatingRenderer changes the document's signatures while it renders,
// the way a request racing the finalization would.
type mutatingRenderer struct {
	Renderer
	during func()
}

func (m *mutatingRenderer) Render(ctx context.Context, original []byte, sigs []*models.Signature) (*finalizer.Result, error) {
	m.during()
	return m.Renderer.Render(ctx, original, sigs)
}

func TestFinalize_SignatureAddedWhileRenderingStaysPending(t *testing.T) {
	e := newEnv(t, nil)
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))
	listed, err := e.sigs.Create(context.Background(), owner, typedInput(doc.ID, 1, 0.5, 0.5, "listed"))
	require.NoError(t, err)

	var late *models.Signature
	e.finalize.renderer = &mutatingRenderer{Renderer: realEngine(), during: func() {
		late, err = e.sigs.Create(context.Background(), owner, typedInput(doc.ID, 1, 0.1, 0.1, "late"))
		require.NoError(t, err)
	}}

	res, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SignatureCount)
	assert.Equal(t, models.StatusSigned, e.store.sigs[listed.ID].Status)
	assert.Equal(t, models.StatusPending, e.store.sigs[late.ID].Status, "not in the artifact")
}

func TestFinalize_SignatureRemovedWhileRenderingRemovesArtifact(t *testing.T) {
	e := newEnv(t, nil)
	doc := upload(t, e, owner, pdftest.Build(pdftest.TwoPages(), pdftest.Options{}))
	var ids []string
	for _, text := range []string{"first", "second"} {
		sig, err := e.sigs.Create(context.Background(), owner, typedInput(doc.ID, 1, 0.5, 0.5, text))
		require.NoError(t, err)
		ids = append(ids, sig.ID)
	}

	e.finalize.renderer = &mutatingRenderer{Renderer: realEngine(), during: func() {
		require.NoError(t, e.sigs.Delete(context.Background(), owner, ids[1]))
	}}

	_, err := e.finalize.Finalize(context.Background(), owner, doc.ID)
	assert.ErrorIs(t, err, common.ErrSignaturesChanged)
	assert.Equal(t, 1, e.files.count(), "only the original remains")
	require.Len(t, e.files.deleted, 1)
	assert.True(t, strings.HasPrefix(e.files.deleted[0], storage.FinalizedDir+"/"))
}

func TestSignedFileName(t *testing.T) {
	assert.Equal(t, "signed_my_lease_2024.pdf", SignedFileName("my lease  2024.pdf"))
	assert.Equal(t, "signed_a.pdf", SignedFileName("a.pdf"))
	assert.False(t, bytes.ContainsAny([]byte(SignedFileName("a\tb.pdf")), " \t"))
}
