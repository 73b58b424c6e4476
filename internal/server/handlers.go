package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mgreene/runlab/internal/sandbox"
	"github.com/mgreene/runlab/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func listOptions(r *http.Request) storage.ListOptions {
	opts := storage.ListOptions{}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}
	return opts
}

// --- One-shot execution ---

type compileRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// handleCompileCode runs code once with stdin unavailable and a fixed time
// budget, returning captured stdout and stderr.
func (s *Server) handleCompileCode(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := s.runner.RunOnce(r.Context(), req.Language, req.Code)
	switch {
	case errors.Is(err, sandbox.ErrEmptyCode):
		writeError(w, http.StatusBadRequest, "No code provided")
		return
	case errors.Is(err, sandbox.ErrTimeout):
		writeError(w, http.StatusRequestTimeout, "Code execution timed out")
		return
	case errors.Is(err, sandbox.ErrUnsupportedLanguage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Record the run; history is best-effort.
	rec := &storage.Run{
		ID:       uuid.New().String(),
		Language: req.Language,
		Code:     req.Code,
		Output:   result.Output,
		Errors:   result.Errors,
	}
	if rec.Language == "" {
		rec.Language = "python"
	}
	if err := s.store.SaveRun(r.Context(), rec); err != nil {
		log.Printf("saving run %s: %v", rec.ID, err)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"output": result.Output,
		"errors": result.Errors,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), listOptions(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// --- Image upload / OCR ---

// handleUploadImage persists each uploaded file as a base64 document and
// extracts its text.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "No image files provided")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No image files provided")
		return
	}

	var names []string
	texts := make(map[string]string)

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		text, err := s.ocr.ExtractText(r.Context(), data)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		img := &storage.Image{
			ID:       uuid.New().String(),
			Filename: fh.Filename,
			Data:     base64.StdEncoding.EncodeToString(data),
			Text:     text,
		}
		if err := s.store.SaveImage(r.Context(), img); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		names = append(names, fh.Filename)
		texts[fh.Filename] = text
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   strconv.Itoa(len(names)) + " images uploaded successfully",
		"files":     names,
		"ocr_texts": texts,
	})
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.store.ListImages(r.Context(), listOptions(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if images == nil {
		images = []storage.Image{}
	}
	writeJSON(w, http.StatusOK, images)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, err := s.store.GetImage(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteImage(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
