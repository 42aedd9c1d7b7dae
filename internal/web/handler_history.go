package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/ilmigreen/internal/domain"
	"github.com/vbonduro/ilmigreen/internal/photostore"
	"github.com/vbonduro/ilmigreen/internal/service"
)

const historyLimit = 50

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.renderPage(w,
		map[string]any{"Categories": domain.Categories, "ActiveNav": "detect", "MaxTextLen": maxTextLen},
		"base.html", "pages/index.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleListDetections(w http.ResponseWriter, r *http.Request) {
	var category domain.Category
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		c, err := domain.ParseCategory(raw)
		if err != nil {
			http.Error(w, "unknown category", http.StatusBadRequest)
			return
		}
		category = c
	}

	detections, err := s.waste.ListDetections(r.Context(), category, historyLimit)
	if err != nil {
		http.Error(w, "failed to list detections", http.StatusInternalServerError)
		s.logger.Error("list detections failed", "error", err)
		return
	}

	// HTMX partial update: return only the list fragment.
	if r.Header.Get("HX-Request") == "true" {
		if err := s.renderPartial(w, "partials/detection_list.html", detections); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
		return
	}

	if err := s.renderPage(w,
		map[string]any{
			"Detections": detections,
			"Categories": domain.Categories,
			"Selected":   category,
			"ActiveNav":  "history",
		},
		"base.html", "pages/history.html", "partials/detection_list.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid detection id", http.StatusBadRequest)
		return
	}

	d, err := s.waste.GetDetection(r.Context(), id)
	if errors.Is(err, service.ErrDetectionNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to get detection", http.StatusInternalServerError)
		s.logger.Error("get detection for photo failed", "detection_id", id, "error", err)
		return
	}
	if d.StorageKey == "" {
		http.NotFound(w, r)
		return
	}

	reader, mimeType, err := s.photoStore.Get(r.Context(), d.StorageKey)
	if errors.Is(err, photostore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to read photo", http.StatusInternalServerError)
		s.logger.Error("read photo failed", "detection_id", id, "error", err)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "detection_id", id, "error", err)
	}
}

func (s *Server) handleDeleteDetection(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid detection id", http.StatusBadRequest)
		return
	}

	err = s.waste.DeleteDetection(r.Context(), id)
	if errors.Is(err, service.ErrDetectionNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to delete detection", http.StatusInternalServerError)
		s.logger.Error("delete detection failed", "detection_id", id, "error", err)
		return
	}

	// An empty 200 lets hx-swap="outerHTML" remove the card.
	w.WriteHeader(http.StatusOK)
}

// parseID extracts the {id} path variable and returns it as int64.
func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
