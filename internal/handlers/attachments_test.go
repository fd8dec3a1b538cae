package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftline/attachkit/internal/attach"
	"github.com/driftline/attachkit/internal/owner"
	"github.com/driftline/attachkit/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPreviewer struct{}

func (stubPreviewer) Measure(attach.Source) (attach.Dimensions, error) {
	return attach.Dimensions{Width: 2000, Height: 2000}, nil
}

func (stubPreviewer) CreatePreview(src attach.Source) (string, error) {
	return "mem://" + src.Name(), nil
}

func (stubPreviewer) Release(string) {}

type stubUploader struct {
	started chan chan attach.Result
}

func newStubUploader() *stubUploader {
	return &stubUploader{started: make(chan chan attach.Result, 4)}
}

func (u *stubUploader) Upload(_ context.Context, _ attach.Source, _ attach.Category) attach.Result {
	result := make(chan attach.Result, 1)
	u.started <- result
	return <-result
}

func submitCheckRouter(e *Env) http.Handler {
	r := chi.NewRouter()
	r.Post("/records/{id}/{surface}/submit-check", e.SubmitCheckHandler)
	return r
}

func postSubmitCheck(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
	return rr
}

func TestSubmitCheckRoutesDialogSurfaces(t *testing.T) {
	up := newStubUploader()
	e := NewEnv(nil, up, stubPreviewer{}, nil)
	e.artwork[7] = owner.NewArtworkDialogAdapter(owner.DialogConfig{
		Record:    &models.OrderLineItem{ID: 7},
		Uploader:  up,
		Previewer: stubPreviewer{},
	})
	mock := owner.NewMockupDialogAdapter(owner.DialogConfig{
		Record:    &models.OrderLineItem{ID: 7},
		Uploader:  up,
		Previewer: stubPreviewer{},
	})
	e.mockups[7] = mock
	h := submitCheckRouter(e)

	assert.Equal(t, http.StatusOK, postSubmitCheck(t, h, "/records/7/artwork-dialog/submit-check").Code)
	assert.Equal(t, http.StatusOK, postSubmitCheck(t, h, "/records/7/mockups/submit-check").Code)

	// An unsettled upload blocks closing the mockup dialog.
	src := attach.NewBytesSource("m1.png", "image/png", []byte("png-bytes"))
	_, err := mock.Mockups.Begin(src, attach.SlotMockup1)
	require.NoError(t, err)
	result := <-up.started
	assert.Equal(t, http.StatusConflict, postSubmitCheck(t, h, "/records/7/mockups/submit-check").Code)

	result <- attach.Result{OK: true, RemoteID: "M1"}
	mock.Mockups.Wait()
	assert.Equal(t, http.StatusOK, postSubmitCheck(t, h, "/records/7/mockups/submit-check").Code)
}

func TestSubmitCheckUnknownSurface(t *testing.T) {
	e := NewEnv(nil, newStubUploader(), stubPreviewer{}, nil)
	h := submitCheckRouter(e)
	assert.Equal(t, http.StatusNotFound, postSubmitCheck(t, h, "/records/7/bogus/submit-check").Code)
}
