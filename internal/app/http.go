package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fomcval/api/internal/export"
	"fomcval/api/internal/meetings"
	"fomcval/api/internal/provider"
	"fomcval/api/internal/results"
	"fomcval/api/internal/search"
	"fomcval/api/internal/session"
	"fomcval/api/internal/snapshot"
	"fomcval/api/internal/validation"
)

const maxDocumentBytes = 4 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"results": map[string]any{"status": "ok"},
		}
		if _, err := s.service.ListResults(ctx, ""); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["results"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/meetings" {
		writeJSON(w, http.StatusOK, s.service.MeetingsOverview(r.Context()))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := search.Query{
			Text:    strings.TrimSpace(r.URL.Query().Get("q")),
			Meeting: strings.TrimSpace(r.URL.Query().Get("meeting")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			q.Limit = parsed
		}
		writeJSON(w, http.StatusOK, s.service.SearchAll(r.Context(), q))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/results" {
		items, err := s.service.ListResults(r.Context(), strings.TrimSpace(r.URL.Query().Get("coderId")))
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": items})
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/meetings/{ymd}/...
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "meetings" && r.Method == http.MethodGet {
		ymd := parts[2]
		switch {
		case len(parts) == 4 && parts[3] == "decisions":
			records, err := s.service.MeetingDecisions(r.Context(), ymd)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"decisions": records})
			return
		case len(parts) == 4 && parts[3] == "alternatives":
			alternatives, err := s.service.MeetingAlternatives(r.Context(), ymd)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			if alternatives == nil {
				alternatives = []provider.Alternative{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"alternatives": alternatives})
			return
		case len(parts) == 4 && parts[3] == "transcript":
			transcript, err := s.service.MeetingTranscript(r.Context(), ymd)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"transcript": transcript})
			return
		case len(parts) == 4 && parts[3] == "stats":
			stats, err := s.service.MeetingStats(r.Context(), ymd)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
			return
		case len(parts) == 5 && parts[3] == "transcript" && parts[4] == "search":
			matches, err := s.service.SearchTranscript(r.Context(), ymd, strings.TrimSpace(r.URL.Query().Get("q")))
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
			return
		}
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/sessions" {
		var body struct {
			CoderID string `json:"coderId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		_, payload, err := s.service.CreateSession(r.Context(), strings.TrimSpace(body.CoderID))
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	// /api/sessions/{id}/...
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "sessions" {
		sessionID := parts[2]

		if len(parts) == 3 && r.Method == http.MethodGet {
			payload, err := s.service.GetState(r.Context(), sessionID)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}

		if len(parts) == 3 && r.Method == http.MethodDelete {
			if err := s.service.EndSession(r.Context(), sessionID); err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}

		if len(parts) == 4 && parts[3] == "coder" && r.Method == http.MethodPut {
			var body struct {
				CoderID string `json:"coderId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.SetCoder(r.Context(), sessionID, strings.TrimSpace(body.CoderID))
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}

		if len(parts) == 4 && parts[3] == "meeting" && r.Method == http.MethodPut {
			var body struct {
				Meeting string `json:"meeting"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.SelectMeeting(r.Context(), sessionID, strings.TrimSpace(body.Meeting))
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}

		if len(parts) >= 5 && parts[3] == "validations" {
			index, err := strconv.Atoi(parts[4])
			if err != nil || index < 0 {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "decision index must be a non-negative integer", nil)
				return
			}

			if len(parts) == 5 && r.Method == http.MethodPatch {
				var patch validation.Patch
				if err := decodeBody(r, &patch); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				payload, err := s.service.UpdateValidation(r.Context(), sessionID, index, patch)
				if err != nil {
					s.writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, payload)
				return
			}
			if len(parts) == 6 && parts[5] == "complete" && r.Method == http.MethodPost {
				payload, err := s.service.CompleteValidation(r.Context(), sessionID, index)
				if err != nil {
					s.writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, payload)
				return
			}
			if len(parts) == 5 && r.Method == http.MethodDelete {
				payload, err := s.service.ClearValidation(r.Context(), sessionID, index)
				if err != nil {
					s.writeMapped(w, err)
					return
				}
				writeJSON(w, http.StatusOK, payload)
				return
			}
		}

		if len(parts) == 4 && parts[3] == "missing" && r.Method == http.MethodPost {
			var item validation.MissingDecision
			if err := decodeBody(r, &item); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.AddMissing(r.Context(), sessionID, item)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}

		if len(parts) == 5 && parts[3] == "missing" && r.Method == http.MethodDelete {
			position, err := strconv.Atoi(parts[4])
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "position must be an integer", nil)
				return
			}
			payload, err := s.service.RemoveMissing(r.Context(), sessionID, position)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}

		if len(parts) == 4 && parts[3] == "summary" && r.Method == http.MethodPut {
			var patch validation.SummaryPatch
			if err := decodeBody(r, &patch); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateSummary(r.Context(), sessionID, patch)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}

		if len(parts) == 4 && parts[3] == "restore" && r.Method == http.MethodPost {
			document, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read document", nil)
				return
			}
			r.Body.Close()
			payload, err := s.service.Restore(r.Context(), sessionID, document)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}

		if len(parts) == 4 && parts[3] == "save" && r.Method == http.MethodPost {
			payload, err := s.service.SaveResults(r.Context(), sessionID)
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}

		if len(parts) == 5 && parts[3] == "export" && r.Method == http.MethodGet {
			var (
				result *export.Result
				err    error
			)
			switch parts[4] {
			case "json":
				result, err = s.service.ExportJSON(r.Context(), sessionID)
			case "csv":
				result, err = s.service.ExportCSV(r.Context(), sessionID)
			case "report.pdf":
				result, err = s.service.ExportPDF(r.Context(), sessionID)
			default:
				writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
				return
			}
			if err != nil {
				s.writeMapped(w, err)
				return
			}
			w.Header().Set("Content-Type", result.MimeType)
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(result.Data)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) writeMapped(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var incomplete *validation.IncompleteError
	if errors.As(err, &incomplete) {
		return http.StatusUnprocessableEntity, "INCOMPLETE_REQUIRED_FIELDS", "required fields are not set",
			map[string]any{"missingFields": incomplete.MissingFields}
	}
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Session not found", nil
	case errors.Is(err, provider.ErrNotFound), errors.Is(err, results.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, meetings.ErrUnsupportedMeeting):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_MEETING", "meeting is not in the recognized set", nil
	case errors.Is(err, snapshot.ErrMalformedDocument):
		return http.StatusBadRequest, "MALFORMED_DOCUMENT", "document could not be parsed", nil
	case errors.Is(err, validation.ErrInvalidValue), errors.Is(err, validation.ErrIndexOutOfRange):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF rendering is not available", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
