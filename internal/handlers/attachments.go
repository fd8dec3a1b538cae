package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/driftline/attachkit/internal/attach"
	"github.com/driftline/attachkit/internal/owner"
	"github.com/driftline/attachkit/models"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// Env carries the handlers' collaborators plus the live adapters for records
// currently being edited. Adapters are created on first touch and keep their
// registries in memory for the duration of the editing session.
type Env struct {
	DB        *gorm.DB
	Uploader  attach.Uploader
	Previewer attach.Previewer
	Logger    *slog.Logger

	mu        sync.Mutex
	lineItems map[uint]*owner.LineItemAdapter
	mockups   map[uint]*owner.MockupDialogAdapter
	artwork   map[uint]*owner.ArtworkDialogAdapter
	products  map[uint]*owner.ProductAdapter
}

// NewEnv builds a handler environment.
func NewEnv(db *gorm.DB, up attach.Uploader, pv attach.Previewer, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		DB:        db,
		Uploader:  up,
		Previewer: pv,
		Logger:    logger,
		lineItems: make(map[uint]*owner.LineItemAdapter),
		mockups:   make(map[uint]*owner.MockupDialogAdapter),
		artwork:   make(map[uint]*owner.ArtworkDialogAdapter),
		products:  make(map[uint]*owner.ProductAdapter),
	}
}

func (e *Env) lineItemAdapter(id uint) (*owner.LineItemAdapter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ad, ok := e.lineItems[id]; ok {
		return ad, nil
	}
	var rec models.OrderLineItem
	if err := e.DB.First(&rec, id).Error; err != nil {
		return nil, err
	}
	ad := owner.NewLineItemAdapter(owner.LineItemConfig{
		Record:    &rec,
		Uploader:  e.Uploader,
		Previewer: e.Previewer,
		Save:      e.saveLineItemColumns,
		Logger:    e.Logger,
	})
	e.lineItems[id] = ad
	return ad, nil
}

func (e *Env) mockupAdapter(id uint) (*owner.MockupDialogAdapter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ad, ok := e.mockups[id]; ok {
		return ad, nil
	}
	var rec models.OrderLineItem
	if err := e.DB.First(&rec, id).Error; err != nil {
		return nil, err
	}
	ad := owner.NewMockupDialogAdapter(owner.DialogConfig{
		Record:    &rec,
		Uploader:  e.Uploader,
		Previewer: e.Previewer,
		Save:      e.saveLineItemColumns,
		Logger:    e.Logger,
	})
	e.mockups[id] = ad
	return ad, nil
}

func (e *Env) artworkAdapter(id uint) (*owner.ArtworkDialogAdapter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ad, ok := e.artwork[id]; ok {
		return ad, nil
	}
	var rec models.OrderLineItem
	if err := e.DB.First(&rec, id).Error; err != nil {
		return nil, err
	}
	ad := owner.NewArtworkDialogAdapter(owner.DialogConfig{
		Record:    &rec,
		Uploader:  e.Uploader,
		Previewer: e.Previewer,
		Save:      e.saveLineItemColumns,
		Logger:    e.Logger,
	})
	e.artwork[id] = ad
	return ad, nil
}

func (e *Env) productAdapter(id uint) (*owner.ProductAdapter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ad, ok := e.products[id]; ok {
		return ad, nil
	}
	var rec models.ProductDraft
	if err := e.DB.Preload("Images").First(&rec, id).Error; err != nil {
		return nil, err
	}
	ad := owner.NewProductAdapter(owner.ProductConfig{
		Record:    &rec,
		Uploader:  e.Uploader,
		Previewer: e.Previewer,
		Save:      e.saveProduct,
		Logger:    e.Logger,
	})
	e.products[id] = ad
	return ad, nil
}

// saveLineItemColumns writes only the columns an adapter owns. The three
// line-item surfaces each hold their own copy of the row; a whole-record
// save from one would overwrite the others' slot columns with stale values.
func (e *Env) saveLineItemColumns(id uint, updates map[string]any) error {
	return e.DB.Model(&models.OrderLineItem{}).Where("id = ?", id).Updates(updates).Error
}

func (e *Env) saveProduct(rec *models.ProductDraft) error {
	return e.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_draft_id = ?", rec.ID).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		return tx.Save(rec).Error
	})
}

// readSource pulls the multipart file out of the request.
func readSource(r *http.Request) (attach.Source, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return attach.NewBytesSource(header.Filename, header.Header.Get("Content-Type"), data), nil
}

func recordID(r *http.Request) (uint, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeBeginError maps Begin/Reupload errors to HTTP responses.
func writeBeginError(w http.ResponseWriter, err error) {
	var ve *attach.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  ve.Error(),
			"reason": string(ve.Reason),
		})
	case errors.Is(err, attach.ErrSlotBusy),
		errors.Is(err, attach.ErrNotRejected),
		errors.Is(err, attach.ErrNoSource):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, attach.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
}

// coordinatorFor resolves the coordinator and add-permission check for one
// upload surface. surface is the route segment: "artwork" (line item),
// "artwork-dialog", "mockups", or "images" (product draft).
func (e *Env) coordinatorFor(surface string, id uint) (*attach.Coordinator, func(attach.Slot) bool, error) {
	switch surface {
	case "artwork":
		ad, err := e.lineItemAdapter(id)
		if err != nil {
			return nil, nil, err
		}
		return ad.Artwork, ad.CanAdd, nil
	case "artwork-dialog":
		ad, err := e.artworkAdapter(id)
		if err != nil {
			return nil, nil, err
		}
		return ad.Artwork, ad.CanAdd, nil
	case "mockups":
		ad, err := e.mockupAdapter(id)
		if err != nil {
			return nil, nil, err
		}
		return ad.Mockups, ad.CanAdd, nil
	case "images":
		ad, err := e.productAdapter(id)
		if err != nil {
			return nil, nil, err
		}
		return ad.Images, ad.CanAdd, nil
	default:
		return nil, nil, errors.New("unknown attachment surface")
	}
}

// UploadAttachmentHandler starts an upload into a slot of the addressed
// record and returns the optimistic local id immediately.
func (e *Env) UploadAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}
	coord, allowed, err := e.coordinatorFor(chi.URLParam(r, "surface"), id)
	if err != nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}

	slot := attach.Slot(r.FormValue("slot"))
	if !allowed(slot) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "slot is not accepting uploads"})
		return
	}
	src, err := readSource(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	localID, err := coord.Begin(src, slot)
	if err != nil {
		writeBeginError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": localID, "slot": string(slot)})
}

// DeleteAttachmentHandler removes an attachment. Always succeeds: removal is
// immediate and idempotent regardless of in-flight uploads.
func (e *Env) DeleteAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}
	coord, _, err := e.coordinatorFor(chi.URLParam(r, "surface"), id)
	if err != nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	coord.Remove(chi.URLParam(r, "attachmentID"))
	w.WriteHeader(http.StatusNoContent)
}

// ReuploadAttachmentHandler retries a rejected upload with its retained file.
func (e *Env) ReuploadAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}
	coord, _, err := e.coordinatorFor(chi.URLParam(r, "surface"), id)
	if err != nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	attachmentID := chi.URLParam(r, "attachmentID")
	if err := coord.Reupload(attachmentID); err != nil {
		writeBeginError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": attachmentID})
}

// ListAttachmentsHandler returns the current registry snapshot for a record.
func (e *Env) ListAttachmentsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}
	coord, _, err := e.coordinatorFor(chi.URLParam(r, "surface"), id)
	if err != nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}

	type entry struct {
		ID         string `json:"id"`
		Slot       string `json:"slot"`
		Status     string `json:"status"`
		PreviewURI string `json:"preview_uri,omitempty"`
		RemoteURI  string `json:"remote_uri,omitempty"`
		Message    string `json:"message,omitempty"`
	}
	var out []entry
	for _, a := range coord.Snapshot() {
		out = append(out, entry{
			ID:         a.ID,
			Slot:       string(a.Slot),
			Status:     string(a.Status),
			PreviewURI: a.LocalPreviewURI,
			RemoteURI:  a.RemoteURI,
			Message:    a.Message,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": out})
}

// SubmitCheckHandler runs the owner's submit gate and reports whether the
// record can be submitted in its current state.
func (e *Env) SubmitCheckHandler(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}

	var check error
	switch chi.URLParam(r, "surface") {
	case "artwork":
		ad, aerr := e.lineItemAdapter(id)
		if aerr != nil {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		check = ad.CheckSubmit()
	case "artwork-dialog":
		ad, aerr := e.artworkAdapter(id)
		if aerr != nil {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		check = ad.CheckSubmit()
	case "mockups":
		ad, aerr := e.mockupAdapter(id)
		if aerr != nil {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		check = ad.CheckSubmit()
	case "images":
		ad, aerr := e.productAdapter(id)
		if aerr != nil {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		check = ad.CheckSubmit()
	default:
		http.Error(w, "unknown attachment surface", http.StatusNotFound)
		return
	}

	if check != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": check.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
