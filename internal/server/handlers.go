package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/warraq/warraq/internal/models"
	"github.com/warraq/warraq/internal/normalize"
	"github.com/warraq/warraq/internal/storage"
	"github.com/warraq/warraq/internal/vector"
	"go.uber.org/zap"
)

const noIndexMessage = "No vector database found. Please upload and process documents first."

const maxUploadMemory = 32 << 20 // 32 MiB before multipart spills to disk

// handleUpload stores the uploaded files, extracts and normalizes their
// text, and rebuilds the vector index as a full replace. Files with
// unsupported extensions are silently skipped; a per-file extraction
// failure skips that file and continues with the rest of the batch.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	var corpus strings.Builder
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		path := filepath.Join(s.config.Storage.UploadDir, name)
		size, err := s.saveUploadedFile(fh, path)
		if err != nil {
			s.logger.Warn("upload save failed, skipping file",
				zap.String("filename", name), zap.Error(err))
			continue
		}
		if err := s.store.RecordUpload(r.Context(), name, size); err != nil {
			s.logger.Warn("upload record failed", zap.String("filename", name), zap.Error(err))
		}
		ext := filepath.Ext(name)
		if !s.extractor.Supported(ext) {
			s.logger.Debug("unsupported extension skipped",
				zap.String("filename", name), zap.String("ext", ext))
			continue
		}
		text, err := s.extractor.Extract(path)
		if err != nil {
			s.logger.Warn("extraction failed, skipping file",
				zap.String("filename", name), zap.Error(err))
			continue
		}
		corpus.WriteString(text)
		corpus.WriteByte('\n')
	}

	normalized := normalize.Arabic(corpus.String())

	s.indexMu.Lock()
	err := s.builder.BuildAndPersist(r.Context(), normalized)
	s.indexMu.Unlock()
	if err != nil {
		s.logger.Error("index build failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Documents uploaded and processed successfully",
	})
}

// saveUploadedFile writes one multipart file to path, overwriting any
// existing file with the same name. Returns the number of bytes written.
func (s *Server) saveUploadedFile(fh *multipart.FileHeader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create upload dir: %w", err)
	}
	src, err := fh.Open()
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()
	n, err := io.Copy(dst, src)
	if err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	return n, nil
}

// handleAsk loads the persisted index and answers the question from the
// top-k retrieved chunks. An absent index is an expected state reported as
// 404, not a server failure.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var q models.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(q.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	s.indexMu.RLock()
	idx, err := vector.Load(s.builder.IndexPath())
	s.indexMu.RUnlock()
	if errors.Is(err, vector.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, noIndexMessage)
		return
	}
	if err != nil {
		s.logger.Error("index load failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response, err := s.answerer.Answer(r.Context(), q.Query, idx)
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"answer": response})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := s.store.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, storage.ErrInvalidCredentials) {
		s.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("login failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Login successful",
		"role":    role,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}
	err := s.store.AddUser(r.Context(), req.Username, req.Password, req.Role)
	if errors.Is(err, storage.ErrUserExists) {
		s.respondError(w, http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		s.logger.Error("register failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("User %s created successfully", req.Username),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("list users failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	s.respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.store.ListUploads(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	s.respondJSON(w, http.StatusOK, uploads)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"message": message})
}
