package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/search"
)

// sseHeartbeat keeps idle event streams open through proxies.
const sseHeartbeat = 25 * time.Second

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		log:        log.With().Str("component", "http").Logger(),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
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
			"store": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["store"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		promhttp.Handler().ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body DevLoginInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		token, id, err := s.service.DevLogin(body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":    token,
			"userId":   id.UserID,
			"userName": id.Name,
			"email":    id.Email,
			"role":     id.Role,
		})
		return
	}

	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userId":        id.UserID,
			"userName":      id.Name,
			"email":         id.Email,
			"role":          id.Role,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" || parts[1] != "threads" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case len(parts) == 2:
		s.handleThreadCollection(w, r, id)
	case len(parts) == 3 && parts[2] == "stream" && r.Method == http.MethodGet:
		s.handleThreadStream(w, r, id)
	case len(parts) == 3 && parts[2] == "search" && r.Method == http.MethodGet:
		s.handleSearch(w, r, id)
	default:
		s.handleThread(w, r, id, parts[2], parts[3:])
	}
}

func (s *HTTPServer) handleThreadCollection(w http.ResponseWriter, r *http.Request, id inquiry.Identity) {
	switch r.Method {
	case http.MethodGet:
		filter, err := filterFromQuery(r)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		threads, err := s.service.ListThreads(r.Context(), id, filter)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
	case http.MethodPost:
		var body CreateThreadInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		detail, err := s.service.CreateThread(r.Context(), id, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, detail)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleThread(w http.ResponseWriter, r *http.Request, id inquiry.Identity, threadID string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		detail, err := s.service.OpenThread(r.Context(), id, threadID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, detail)

	case len(rest) == 0 && r.Method == http.MethodDelete:
		if err := s.service.DeleteThread(r.Context(), id, threadID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "messages" && r.Method == http.MethodGet:
		messages, err := s.service.ListMessages(r.Context(), id, threadID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messages})

	case len(rest) == 1 && rest[0] == "messages" && r.Method == http.MethodPost:
		var body AppendMessageInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		message, err := s.service.AppendMessage(r.Context(), id, threadID, body)
		if err != nil {
			status, code, msg, details := mapError(err)
			writeError(w, status, code, msg, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": message})

	case len(rest) == 2 && rest[0] == "messages" && rest[1] == "stream" && r.Method == http.MethodGet:
		s.handleMessageStream(w, r, id, threadID)

	case len(rest) == 1 && (rest[0] == "resolve" || rest[0] == "reopen") && r.Method == http.MethodPost:
		var (
			thread inquiry.Thread
			err    error
		)
		if rest[0] == "resolve" {
			thread, err = s.service.ResolveThread(r.Context(), id, threadID)
		} else {
			thread, err = s.service.ReopenThread(r.Context(), id, threadID)
		}
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"thread":       thread,
			"capabilities": s.service.Capabilities(thread, id),
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, id inquiry.Identity) {
	q := search.Query{Text: strings.TrimSpace(r.URL.Query().Get("q")), Limit: 20}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := inquiry.ParseStatus(raw)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		q.Status = status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer between 1 and 100", nil)
			return
		}
		q.Limit = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be a non-negative integer", nil)
			return
		}
		q.Offset = parsed
	}

	payload, err := s.service.Search(r.Context(), id, q)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleThreadStream(w http.ResponseWriter, r *http.Request, id inquiry.Identity) {
	filter, err := filterFromQuery(r)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	view, err := s.service.SubscribeThreads(r.Context(), id, filter)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	defer view.Cancel()
	streamSnapshots(r.Context(), w, "threads", view.C(), s.log)
}

func (s *HTTPServer) handleMessageStream(w http.ResponseWriter, r *http.Request, id inquiry.Identity, threadID string) {
	sub, err := s.service.SubscribeMessages(r.Context(), id, threadID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	defer sub.Cancel()
	streamSnapshots(r.Context(), w, "messages", sub.C(), s.log)
}

// streamSnapshots writes each snapshot as a server-sent event until the client
// goes away or the subscription ends.
func streamSnapshots[T any](ctx context.Context, w http.ResponseWriter, event string, snapshots <-chan T, log zerolog.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming unsupported", nil)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			payload, err := json.Marshal(map[string]any{event: snapshot})
			if err != nil {
				log.Error().Err(err).Str("event", event).Msg("encode snapshot")
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func filterFromQuery(r *http.Request) (inquiry.Filter, error) {
	values := r.URL.Query()
	filter := inquiry.Filter{Query: strings.TrimSpace(values.Get("q"))}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status, err := inquiry.ParseStatus(raw)
		if err != nil {
			return inquiry.Filter{}, err
		}
		filter.Status = status
	}
	from, err := inquiry.ParseDateBound("from", values.Get("from"), false)
	if err != nil {
		return inquiry.Filter{}, err
	}
	to, err := inquiry.ParseDateBound("to", values.Get("to"), true)
	if err != nil {
		return inquiry.Filter{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return inquiry.Filter{}, inquiry.Invalid("to", "must not be before from")
	}
	filter.From, filter.To = from, to
	return filter, nil
}

func (s *HTTPServer) requireIdentity(w http.ResponseWriter, r *http.Request) (inquiry.Identity, bool) {
	token := bearerToken(r)
	if token == "" {
		// EventSource cannot set headers; streams may pass the token as a query parameter.
		if strings.HasSuffix(r.URL.Path, "/stream") {
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
		}
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return inquiry.Identity{}, false
	}
	id, err := s.service.IdentityFromToken(token)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return inquiry.Identity{}, false
	}
	return id, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := withRequestID(r.Context(), requestID)
		ctx = withRequestPath(ctx, r.URL.Path)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
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
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
