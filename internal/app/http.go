package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"govhub/api/internal/proposal"
)

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
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
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

	if r.Method == http.MethodGet && r.URL.Path == "/api/v1/tenants" {
		writeJSON(w, http.StatusOK, map[string]any{"tenants": s.service.Tenants()})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/internal/v1/repositories/refresh" {
		if !s.authorizeAdmin(r) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		s.service.ClearRepositoryCache()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/v1/{tenant}/...
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "v1" {
		tenantSlug := parts[2]

		if parts[3] == "proposals" {
			switch {
			case len(parts) == 4 && r.Method == http.MethodGet:
				s.handleListProposals(w, r, tenantSlug)
				return
			case len(parts) == 5 && parts[4] == "search" && r.Method == http.MethodGet:
				s.handleSearchProposals(w, r, tenantSlug)
				return
			case len(parts) == 5 && r.Method == http.MethodGet:
				s.handleGetProposal(w, r, tenantSlug, parts[4])
				return
			case len(parts) == 6 && parts[5] == "non-voters" && r.Method == http.MethodGet:
				s.handleNonVoters(w, r, tenantSlug, parts[4])
				return
			}
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}

		if parts[3] == "delegates" && len(parts) == 6 && parts[5] == "votes" {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			s.handleDelegateVotes(w, r, tenantSlug, parts[4])
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleListProposals(w http.ResponseWriter, r *http.Request, tenantSlug string) {
	query := r.URL.Query()

	page, ok := parsePagination(w, query)
	if !ok {
		return
	}
	atBlock, ok := parseBlock(w, query)
	if !ok {
		return
	}

	params := ListParams{
		Type:           proposal.Variant(strings.ToUpper(strings.TrimSpace(query.Get("type")))),
		Proposer:       strings.TrimSpace(query.Get("proposer")),
		Status:         proposal.Status(strings.ToUpper(strings.TrimSpace(query.Get("status")))),
		OrderBy:        strings.TrimSpace(query.Get("orderBy")),
		OrderDirection: strings.ToLower(strings.TrimSpace(query.Get("orderDirection"))),
		AtBlock:        atBlock,
		Page:           page,
	}

	payload, err := s.service.ListProposals(r.Context(), tenantSlug, params)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleGetProposal(w http.ResponseWriter, r *http.Request, tenantSlug, id string) {
	atBlock, ok := parseBlock(w, r.URL.Query())
	if !ok {
		return
	}
	payload, err := s.service.GetProposal(r.Context(), tenantSlug, proposal.ID(id), atBlock)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleNonVoters(w http.ResponseWriter, r *http.Request, tenantSlug, id string) {
	page, ok := parsePagination(w, r.URL.Query())
	if !ok {
		return
	}
	payload, err := s.service.NonVoters(r.Context(), tenantSlug, proposal.ID(id), page)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleDelegateVotes(w http.ResponseWriter, r *http.Request, tenantSlug, delegate string) {
	query := r.URL.Query()
	page, ok := parsePagination(w, query)
	if !ok {
		return
	}
	atBlock, ok := parseBlock(w, query)
	if !ok {
		return
	}
	payload, err := s.service.DelegateVotes(r.Context(), tenantSlug, delegate, page, atBlock)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSearchProposals(w http.ResponseWriter, r *http.Request, tenantSlug string) {
	query := r.URL.Query()
	page, ok := parsePagination(w, query)
	if !ok {
		return
	}
	payload, err := s.service.SearchProposals(r.Context(), tenantSlug, query.Get("q"), page)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) authorizeAdmin(r *http.Request) bool {
	token := s.service.AdminToken()
	if token == "" {
		return false
	}
	provided := bearerToken(r)
	return provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(token)) == 1
}

func parsePagination(w http.ResponseWriter, query url.Values) (proposal.Pagination, bool) {
	var page proposal.Pagination
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return page, false
		}
		page.Limit = n
	}
	if raw := query.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return page, false
		}
		page.Offset = n
	}
	return page, true
}

func parseBlock(w http.ResponseWriter, query url.Values) (*big.Int, bool) {
	raw := strings.TrimSpace(query.Get("block"))
	if raw == "" {
		return nil, true
	}
	block, ok := new(big.Int).SetString(raw, 10)
	if !ok || block.Sign() < 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "block must be a non-negative integer", nil)
		return nil, false
	}
	return block, true
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
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
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
