package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docrank/internal/parser"
	"github.com/dgallion1/docrank/internal/pipeline"
	"github.com/dgallion1/docrank/internal/scenario"
	"github.com/go-chi/chi/v5"
)

// handleRank accepts a multipart form with a "scenario" JSON field and the
// collection's documents as "files". Documents the scenario lists but that
// were not uploaded are reported as missing by the run. An empty collection
// ranks every uploaded file in upload order.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	raw := r.FormValue("scenario")
	if raw == "" {
		jsonError(w, "scenario is required", http.StatusBadRequest)
		return
	}
	sc, err := scenario.Parse([]byte(raw))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	seen := make(map[string]bool, len(files))
	for _, fh := range files {
		name := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(name) {
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name)), http.StatusBadRequest)
			return
		}
		if seen[name] {
			jsonError(w, "duplicate file name: "+name, http.StatusBadRequest)
			return
		}
		seen[name] = true
	}

	dir, err := os.MkdirTemp("", "docrank-job-*")
	if err != nil {
		s.log.Error("create job dir", "error", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	uploaded := make([]string, 0, len(files))
	for _, fh := range files {
		name := sanitizeFilename(fh.Filename)
		if err := saveUpload(fh, filepath.Join(dir, name)); err != nil {
			os.RemoveAll(dir)
			s.log.Error("store upload", "filename", name, "error", err)
			jsonError(w, "failed to store upload", http.StatusInternalServerError)
			return
		}
		uploaded = append(uploaded, name)
	}

	if len(sc.Documents) == 0 {
		for _, name := range uploaded {
			sc.Documents = append(sc.Documents, scenario.DocumentRef{FileName: name})
		}
	} else {
		// Collection names resolve inside the job directory only.
		for i, d := range sc.Documents {
			sc.Documents[i].FileName = sanitizeFilename(d.FileName)
		}
	}

	job := pipeline.NewJob(pipeline.RequestFor(sc, dir), dir)
	if err := s.orchestrator.Submit(job); err != nil {
		os.RemoveAll(dir)
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":     job.ID,
		"status":     pipeline.StatusQueued,
		"documents":  job.Documents,
		"poll_url":   fmt.Sprintf("/api/rank/%s/status", job.ID),
		"result_url": fmt.Sprintf("/api/rank/%s/result", job.ID),
	})
}

func (s *Server) handleRankStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleRankResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	out := job.Result()
	if out == nil {
		snap := job.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "result not available",
			"status": snap.Status,
			"errors": snap.Errors,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := out.Encode(w); err != nil {
		s.log.Warn("write result", "job_id", jobID, "error", err)
	}
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return dst.Close()
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
