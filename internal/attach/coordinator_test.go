package attach

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPreviewer measures every file as 2000x2000 unless an override is set,
// and tracks preview URIs so tests can assert resource release.
type stubPreviewer struct {
	mu       sync.Mutex
	dims     map[string]Dimensions
	created  int
	released []string
}

func newStubPreviewer() *stubPreviewer {
	return &stubPreviewer{dims: make(map[string]Dimensions)}
}

func (p *stubPreviewer) Measure(src Source) (Dimensions, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.dims[src.Name()]; ok {
		return d, nil
	}
	return Dimensions{Width: 2000, Height: 2000}, nil
}

func (p *stubPreviewer) CreatePreview(src Source) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	return fmt.Sprintf("mem://%s-%d", src.Name(), p.created), nil
}

func (p *stubPreviewer) Release(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, uri)
}

func (p *stubPreviewer) releasedURIs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.released...)
}

// stubUploader hands each call to the test through started and blocks until
// the test settles it. The context is recorded but deliberately not honored:
// abort is advisory, and a "cancelled" call can still settle later.
type stubUploader struct {
	started chan *uploadCall
}

type uploadCall struct {
	src      Source
	category Category
	ctx      context.Context
	result   chan Result
}

func newStubUploader() *stubUploader {
	return &stubUploader{started: make(chan *uploadCall, 16)}
}

func (u *stubUploader) Upload(ctx context.Context, src Source, category Category) Result {
	call := &uploadCall{src: src, category: category, ctx: ctx, result: make(chan Result, 1)}
	u.started <- call
	return <-call.result
}

func newTestCoordinator(t *testing.T, category Category) (*Coordinator, *stubUploader, *stubPreviewer) {
	t.Helper()
	up := newStubUploader()
	pv := newStubPreviewer()
	c := NewCoordinator(CoordinatorConfig{
		Category:  category,
		Uploader:  up,
		Previewer: pv,
	})
	return c, up, pv
}

func pngSource(name string) Source {
	return NewBytesSource(name, "image/png", []byte("png-bytes"))
}

func requireNoDuplicateIDs(t *testing.T, snap []Attachment) {
	t.Helper()
	seen := make(map[string]bool)
	for _, a := range snap {
		require.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
	}
}

func TestBeginInsertsOptimistically(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	id, err := c.Begin(pngSource("front.png"), SlotFront)
	require.NoError(t, err)
	assert.True(t, IsLocalID(id))

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, StatusPending, snap[0].Status)
	assert.Equal(t, SlotFront, snap[0].Slot)
	assert.NotEmpty(t, snap[0].LocalPreviewURI)
	assert.Empty(t, snap[0].RemoteURI)

	call := <-up.started
	assert.Equal(t, CategoryArtwork, call.category)
	call.result <- Result{OK: true, RemoteID: "R1", RemoteURI: "https://cdn/r1"}
	c.Wait()

	snap = c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "R1", snap[0].ID)
	assert.Equal(t, StatusSuccess, snap[0].Status)
	assert.Equal(t, "https://cdn/r1", snap[0].RemoteURI)
	assert.Empty(t, snap[0].LocalPreviewURI)
	requireNoDuplicateIDs(t, snap)
}

func TestBeginValidationRejectedLeavesRegistryUntouched(t *testing.T) {
	c, up, pv := newTestCoordinator(t, CategoryArtwork)
	pv.dims["small.png"] = Dimensions{Width: 500, Height: 500}

	_, err := c.Begin(pngSource("small.png"), SlotFront)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ReasonTooSmall, ve.Reason)
	assert.Empty(t, c.Snapshot())
	// The transport is never reached for a validation failure.
	select {
	case <-up.started:
		t.Fatal("transport was called")
	default:
	}
}

func TestRemoveBeforeSuccessSettlesDiscardsCompletion(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	id, err := c.Begin(pngSource("front.png"), SlotFront)
	require.NoError(t, err)
	call := <-up.started

	c.Remove(id)
	assert.Empty(t, c.Snapshot(), "removal is immediate")
	assert.Error(t, call.ctx.Err(), "cancel token triggered")

	// The transport completes successfully anyway, long after the delete.
	call.result <- Result{OK: true, RemoteID: "R1", RemoteURI: "https://cdn/r1"}
	c.Wait()

	snap := c.Snapshot()
	assert.Empty(t, snap, "late success must not resurrect the attachment")
	_, ok := c.Occupant(SlotFront)
	assert.False(t, ok, "slot must not be re-populated")
}

func TestRemoveBeforeFailureSettlesDiscardsCompletion(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	id, err := c.Begin(pngSource("front.png"), SlotFront)
	require.NoError(t, err)
	call := <-up.started

	c.Remove(id)
	call.result <- Failure("timeout")
	c.Wait()

	assert.Empty(t, c.Snapshot(), "late failure must not re-display the attachment as rejected")
}

func TestRemoveReleasesLocalPreview(t *testing.T) {
	c, up, pv := newTestCoordinator(t, CategoryArtwork)

	id, err := c.Begin(pngSource("front.png"), SlotFront)
	require.NoError(t, err)
	call := <-up.started

	c.Remove(id)
	assert.Len(t, pv.releasedURIs(), 1)

	call.result <- Failure("late")
	c.Wait()
}

func TestRemoveIsIdempotent(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	id, err := c.Begin(pngSource("front.png"), SlotFront)
	require.NoError(t, err)
	call := <-up.started

	c.Remove(id)
	c.Remove(id) // no-op

	call.result <- Result{OK: true, RemoteID: "R1"}
	c.Wait()
	assert.Empty(t, c.Snapshot())
}

func TestRemoveSettledAttachmentSkipsGuard(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	_, err := c.Begin(pngSource("front.png"), SlotFront)
	require.NoError(t, err)
	(<-up.started).result <- Result{OK: true, RemoteID: "R1"}
	c.Wait()

	c.Remove("R1")
	assert.Empty(t, c.Snapshot())
	assert.Zero(t, c.guard.Len(), "no pending completion to suppress")
}

func TestFailedReplacementKeepsOriginal(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	_, err := c.Begin(pngSource("v1.png"), SlotFront)
	require.NoError(t, err)
	(<-up.started).result <- Result{OK: true, RemoteID: "R1", RemoteURI: "https://cdn/r1"}
	c.Wait()

	// Replacing over a settled occupant is allowed; the old image survives
	// unless the new upload actually succeeds.
	_, err = c.Begin(pngSource("v2.png"), SlotFront)
	require.NoError(t, err)
	(<-up.started).result <- Failure("virus scan failed")
	c.Wait()

	occ, ok := c.Occupant(SlotFront)
	require.True(t, ok)
	assert.Equal(t, "R1", occ.ID)
	assert.Equal(t, StatusSuccess, occ.Status)
	assert.Equal(t, "https://cdn/r1", occ.RemoteURI)

	// The failed replacement stays visible with its rejection reason.
	snap := c.Snapshot()
	require.Len(t, snap, 2)
	requireNoDuplicateIDs(t, snap)
}

func TestSuccessfulReplacementEvictsOriginal(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	_, err := c.Begin(pngSource("v1.png"), SlotFront)
	require.NoError(t, err)
	(<-up.started).result <- Result{OK: true, RemoteID: "R1"}
	c.Wait()

	_, err = c.Begin(pngSource("v2.png"), SlotFront)
	require.NoError(t, err)
	(<-up.started).result <- Result{OK: true, RemoteID: "R2", RemoteURI: "https://cdn/r2"}
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "R2", snap[0].ID)
}

func TestBeginRefusedWhileSlotUploadInFlight(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	_, err := c.Begin(pngSource("v1.png"), SlotFront)
	require.NoError(t, err)
	call := <-up.started

	_, err = c.Begin(pngSource("v2.png"), SlotFront)
	assert.ErrorIs(t, err, ErrSlotBusy)
	assert.Equal(t, 1, len(c.Snapshot()))

	call.result <- Result{OK: true, RemoteID: "R1"}
	c.Wait()
}

func TestReuploadUsesRetainedSource(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	src := pngSource("front.png")
	id, err := c.Begin(src, SlotFront)
	require.NoError(t, err)
	first := <-up.started
	first.result <- Failure("server error")
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, StatusRejected, snap[0].Status)
	assert.Equal(t, "server error", snap[0].Message)
	assert.NotEmpty(t, snap[0].LocalPreviewURI, "rejected entry keeps its preview")

	require.NoError(t, c.Reupload(id))
	second := <-up.started
	assert.Same(t, src, second.src, "re-upload sends the originally retained file")

	second.result <- Result{OK: true, RemoteID: "R2", RemoteURI: "https://cdn/r2"}
	c.Wait()

	snap = c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "R2", snap[0].ID)
	assert.Equal(t, StatusSuccess, snap[0].Status)
	requireNoDuplicateIDs(t, snap)
}

func TestReuploadPreconditions(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	assert.ErrorIs(t, c.Reupload("local-nope"), ErrNotFound)

	id, err := c.Begin(pngSource("front.png"), SlotFront)
	require.NoError(t, err)
	call := <-up.started

	// Still in flight: not eligible.
	assert.ErrorIs(t, c.Reupload(id), ErrNotRejected)

	call.result <- Result{OK: true, RemoteID: "R1"}
	c.Wait()
	assert.ErrorIs(t, c.Reupload("R1"), ErrNotRejected)
}

func TestReuploadRejectedAgain(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryArtwork)

	id, err := c.Begin(pngSource("front.png"), SlotFront)
	require.NoError(t, err)
	(<-up.started).result <- Failure("first")
	c.Wait()

	require.NoError(t, c.Reupload(id))
	(<-up.started).result <- Failure("second")
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, StatusRejected, snap[0].Status)
	assert.Equal(t, "second", snap[0].Message)
}

func TestConcurrentSlotsSettleOutOfOrder(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryMockup)

	_, err := c.Begin(pngSource("m1.png"), SlotMockup1)
	require.NoError(t, err)
	first := <-up.started

	_, err = c.Begin(pngSource("m2.png"), SlotMockup2)
	require.NoError(t, err)
	second := <-up.started

	// The later-started upload completes first.
	second.result <- Result{OK: true, RemoteID: "R2", RemoteURI: "https://cdn/m2"}
	first.result <- Result{OK: true, RemoteID: "R1", RemoteURI: "https://cdn/m1"}
	c.Wait()

	occ1, ok := c.Occupant(SlotMockup1)
	require.True(t, ok)
	assert.Equal(t, "R1", occ1.ID)

	occ2, ok := c.Occupant(SlotMockup2)
	require.True(t, ok)
	assert.Equal(t, "R2", occ2.ID)
	requireNoDuplicateIDs(t, c.Snapshot())
}

func TestRemoveOneOfTwoInFlight(t *testing.T) {
	c, up, _ := newTestCoordinator(t, CategoryMockup)

	id1, err := c.Begin(pngSource("m1.png"), SlotMockup1)
	require.NoError(t, err)
	first := <-up.started

	_, err = c.Begin(pngSource("m2.png"), SlotMockup2)
	require.NoError(t, err)
	second := <-up.started

	c.Remove(id1)

	first.result <- Result{OK: true, RemoteID: "R1"}
	second.result <- Result{OK: true, RemoteID: "R2"}
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "R2", snap[0].ID)
	assert.Equal(t, SlotMockup2, snap[0].Slot)
}

func TestHydratedAttachmentCannotReupload(t *testing.T) {
	c, _, _ := newTestCoordinator(t, CategoryArtwork)

	c.Hydrate("R9", SlotFront, "https://cdn/r9")

	occ, ok := c.Occupant(SlotFront)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, occ.Status)
	assert.True(t, occ.Hydrated())

	assert.ErrorIs(t, c.Reupload("R9"), ErrNotRejected)
}

func TestPreviewReleasedOnlyOnSuccess(t *testing.T) {
	c, up, pv := newTestCoordinator(t, CategoryArtwork)

	_, err := c.Begin(pngSource("front.png"), SlotFront)
	require.NoError(t, err)
	call := <-up.started
	assert.Empty(t, pv.releasedURIs())

	call.result <- Result{OK: true, RemoteID: "R1"}
	c.Wait()
	assert.Len(t, pv.releasedURIs(), 1, "local preview released once remote is authoritative")
}
