package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/titlenorm/internal/catalog"
	"github.com/hyperjump/titlenorm/internal/indexstore"
	"github.com/hyperjump/titlenorm/internal/models"
	"github.com/hyperjump/titlenorm/internal/storage"
	"github.com/hyperjump/titlenorm/pkg/standardizer"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.match(w, r, &req)
}

func (s *Server) handleMatchFile(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUpload {
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxUpload))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	queries, err := s.extractor.QueriesFromBytes(content, ext)
	if err != nil {
		s.logger.Debug("extract failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Debug("match file request", zap.String("filename", header.Filename), zap.Int("queries", len(queries)))
	req := models.MatchRequest{
		Queries: queries,
		Record:  r.FormValue("record") == "true",
		Source:  "file:" + filepath.Base(header.Filename),
	}
	s.match(w, r, &req)
}

func (s *Server) match(w http.ResponseWriter, r *http.Request, req *models.MatchRequest) {
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	results, err := s.std.Match(r.Context(), req.Queries)
	if err != nil {
		s.logger.Error("match failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	resp := models.MatchResponse{Results: results}
	if req.Record {
		run, err := s.std.Record(r.Context(), req.Source, results)
		if err != nil {
			if errors.Is(err, standardizer.ErrHistoryDisabled) {
				s.respondError(w, http.StatusNotImplemented, "history not enabled")
				return
			}
			s.logger.Error("record run failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.RunID = run.ID
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStandardize(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	values, err := s.std.Standardize(r.Context(), req.Queries)
	if err != nil {
		s.logger.Error("standardize failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.StandardizeResponse{Values: values})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	classification, code, known := s.std.Lookup(title)
	resp := models.LookupResponse{
		Title:          title,
		Classification: classification,
		Code:           code,
		Known:          known,
	}
	if !known {
		resp.DidYouMean = suggestedTitles(s.std, title)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var err error
	if r.URL.Query().Get("force") == "true" {
		err = s.std.Rebuild(r.Context())
	} else {
		err = s.std.Reload(r.Context())
	}
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.std.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.std.Status())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	h := s.std.History()
	if h == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultRunsLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	ctx := r.Context()
	runs, err := h.ListRuns(ctx, offset, limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := h.CountRuns(ctx)
	if err != nil {
		s.logger.Error("count runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*models.MatchRun{}
	}
	s.respondJSON(w, http.StatusOK, models.RunList{Runs: runs, Total: total})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	h := s.std.History()
	if h == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	run, err := h.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			s.respondError(w, http.StatusNotFound, "run not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	h := s.std.History()
	if h == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete run request", zap.String("id", id))
	if err := h.DeleteRun(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			s.respondError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("delete run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps a match or reload failure to an HTTP status. A catalog or index that
// cannot be loaded leaves the service unable to match, which is 503.
func statusFor(err error) int {
	if errors.Is(err, catalog.ErrMalformed) || errors.Is(err, indexstore.ErrCorruptIndex) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func suggestedTitles(std *standardizer.Standardizer, title string) []string {
	var out []string
	for _, sg := range std.Suggest(title, standardizer.DefaultSuggestions) {
		out = append(out, sg.Title)
	}
	return out
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
