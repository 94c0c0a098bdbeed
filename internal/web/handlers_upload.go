package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/natijti/internal/core"
	"github.com/JonMunkholm/natijti/internal/logging"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

// formSlack allows for multipart framing and the non-file fields.
const formSlack = 1 << 20

// handleUpload accepts a results file for an exam session and starts an
// ingestion task. Responds 202 with the task handle.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, cleanup, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer cleanup()

	sessionID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("session_id")), 10, 64)
	if err != nil || sessionID <= 0 {
		respondError(w, r, invalidParam("session_id", "must be a positive integer"))
		return
	}

	handle, err := s.service.Submit(WithRequestMetadata(r.Context(), r), core.SubmitRequest{
		FileName:  header.Filename,
		Reader:    file,
		Size:      header.Size,
		SessionID: sessionID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("upload accepted",
		"task_id", handle.TaskID,
		"session_id", sessionID,
		"rows", handle.TotalRows,
	)
	writeJSON(w, http.StatusAccepted, handle)
}

// handlePreview describes an uploaded file without importing it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	file, header, cleanup, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer cleanup()

	preview, err := s.service.Preview(r.Context(), header.Filename, file, header.Size)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleTaskStatus reports the progress of an ingestion task.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Status(chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// readUpload parses the multipart body and returns its "file" part. The body
// is capped just above the configured file ceiling.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, func(), error) {
	maxSize := s.cfg.Upload.MaxFileSize.Int64()
	if maxSize <= 0 {
		maxSize = core.DefaultMaxFileSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formSlack)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, nil, fmt.Errorf("%w: request body over %d bytes", core.ErrFileTooLarge, tooLarge.Limit)
		}
		return nil, nil, nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	removeForm := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		removeForm()
		return nil, nil, nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	return file, header, func() {
		_ = file.Close()
		removeForm()
	}, nil
}
