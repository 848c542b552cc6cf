package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ragapi/internal/config"
	"github.com/hyperjump/ragapi/internal/indexer"
	"github.com/hyperjump/ragapi/internal/models"
	"github.com/hyperjump/ragapi/internal/storage"
)

// multipartMemory is how much of a multipart body is held in memory before spilling to disk.
const multipartMemory = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Health())
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	results := make([]*models.IngestResult, 0, len(files))
	for _, fh := range files {
		s.logger.Debug("ingest request", zap.String("filename", fh.Filename), zap.Int64("size", fh.Size))
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "unreadable upload "+fh.Filename)
			return
		}
		path, err := s.staging.Save(fh.Filename, f)
		f.Close()
		if err != nil {
			if errors.Is(err, storage.ErrInvalidName) {
				s.respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.logger.Error("staging upload failed", zap.String("filename", fh.Filename), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		res, err := s.indexer.IngestFile(r.Context(), path)
		if err != nil {
			if errors.Is(err, indexer.ErrUnprocessable) {
				s.logger.Warn("ingest rejected", zap.String("filename", fh.Filename), zap.Error(errors.Unwrap(err)))
				s.respondError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			s.logger.Error("ingest failed", zap.String("filename", fh.Filename), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		results = append(results, res)
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("top_k", req.TopK), zap.String("doc_id", req.DocID))
	response, err := s.engine.Query(r.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidQuery) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docId")
	s.logger.Debug("delete document request", zap.String("doc_id", docID))
	n, err := s.indexer.DeleteDocument(r.Context(), docID)
	if err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.DeleteResponse{DocID: docID, DeletedCount: n})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.Describe(r.Context())
	if err != nil {
		s.logger.Error("status: describe collection failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := &models.StatusResponse{
		Collection:        info.Name,
		Backend:           s.config.Vector.Backend,
		Metric:            string(info.Metric),
		Dimension:         info.Dimension,
		IndexType:         info.Index.Type,
		ChunkCount:        info.Rows,
		EmbeddingProvider: s.config.Embedding.Provider,
		EmbeddingModel:    s.config.Embedding.ModelName,
		ChunkSize:         s.config.Chunking.ChunkSize,
		ChunkOverlap:      s.config.Chunking.ChunkOverlap,
	}
	if s.staging != nil {
		if n, err := s.staging.Usage(); err == nil {
			resp.StagingBytes = n
		}
	}
	if s.watch != nil {
		resp.WatchDirectories = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req models.WatchDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body models.WatchDirectoryRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current roots back to the config file, if any.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
