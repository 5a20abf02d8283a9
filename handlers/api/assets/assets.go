package assets

import (
	"designlink/assethash"
	"designlink/core"
	"designlink/middleware"
	"designlink/registry"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Registries maps each asset kind to the registry that serves it.
type Registries map[core.AssetKind]*registry.Registry

type (
	RenameRequest struct {
		Name string `json:"name"`
	}

	VerifyResponse struct {
		ID       string `json:"id"`
		Verified bool   `json:"verified"`
	}
)

func (regs Registries) lookup(w http.ResponseWriter, r *http.Request) (*registry.Registry, bool) {
	kind, err := core.ParseAssetKind(chi.URLParam(r, "kind"))
	if err == nil {
		if reg, ok := regs[kind]; ok {
			return reg, true
		}
	}
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, map[string]string{"error": "Unknown asset kind"})
	return nil, false
}

func policyStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, registry.ErrInvalidFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, registry.ErrAlreadyUploaded):
		return http.StatusConflict
	case errors.Is(err, registry.ErrMaxReached):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func HandleList(regs Registries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := regs.lookup(w, r)
		if !ok {
			return
		}

		records := reg.List()
		summaries := make([]core.AssetRecord, 0, len(records))
		for _, rec := range records {
			summaries = append(summaries, rec.Summary())
		}
		render.JSON(w, r, summaries)
	}
}

func HandleStats(regs Registries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := regs.lookup(w, r)
		if !ok {
			return
		}
		render.JSON(w, r, reg.Stats())
	}
}

// HandleUpload stores the raw request body. A vector that is already
// stored answers 200 with the existing record; new records answer 201.
func HandleUpload(regs Registries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := regs.lookup(w, r)
		if !ok {
			return
		}

		// One byte past the ceiling is enough for the registry to refuse it.
		body, err := io.ReadAll(io.LimitReader(r.Body, int64(reg.Limits().MaxBytes)+1))
		if err != nil {
			logrus.WithError(err).Error("Failed to read request body")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		rec, created, err := reg.Upload(r.Context(), body, r.URL.Query().Get("name"))
		if err != nil {
			var policyErr *registry.PolicyError
			if errors.As(err, &policyErr) {
				render.Status(r, policyStatus(err))
				render.JSON(w, r, map[string]string{"error": policyErr.Reason})
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to store asset"})
			return
		}

		if created {
			fields := logrus.Fields{"asset_id": rec.ID, "asset_kind": reg.Kind()}
			if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
				fields["subject"] = claims.Subject
			}
			logrus.WithFields(fields).Info("Asset uploaded")
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, rec.Summary())
	}
}

// HandleGetContent serves the stored bytes with their media type.
func HandleGetContent(regs Registries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := regs.lookup(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		rec, found := reg.Get(id)
		content, readable := reg.GetContent(id)
		if !found || !readable {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Asset not found"})
			return
		}

		contentType := "image/svg+xml"
		if rec.Font != nil {
			contentType = rec.Font.MimeType
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Write(content)
	}
}

func HandleRename(regs Registries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := regs.lookup(w, r)
		if !ok {
			return
		}

		var req RenameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "A non-empty name is required"})
			return
		}
		defer r.Body.Close()

		id := chi.URLParam(r, "id")
		renamed, err := reg.Rename(r.Context(), id, strings.TrimSpace(req.Name))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to rename asset"})
			return
		}
		if !renamed {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Asset not found"})
			return
		}

		rec, _ := reg.Get(id)
		render.JSON(w, r, rec.Summary())
	}
}

func HandleDelete(regs Registries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := regs.lookup(w, r)
		if !ok {
			return
		}

		deleted, err := reg.Delete(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete asset"})
			return
		}
		if !deleted {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Asset not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleClear(regs Registries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := regs.lookup(w, r)
		if !ok {
			return
		}

		if err := reg.Clear(r.Context()); err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to clear assets"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleVerify checks whether the posted content hashes to the id in the
// path. Nothing is read from or written to the registry.
func HandleVerify(regs Registries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := regs.lookup(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		kind, _, err := assethash.ParseID(id)
		if err != nil || kind != reg.Kind() {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid asset id"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, int64(reg.Limits().MaxBytes)+1))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		render.JSON(w, r, VerifyResponse{ID: id, Verified: assethash.VerifyID(id, body)})
	}
}
