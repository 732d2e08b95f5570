package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"curator/api/internal/auth"
	"curator/api/internal/authpw"
	"curator/api/internal/export"
	"curator/api/internal/media"
	"curator/api/internal/rbac"
	"curator/api/internal/search"
	"curator/api/internal/store"
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

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/verify-email" {
		s.handleAuthVerifyEmail(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userName": session.UserName, "userId": session.UserID, "role": session.Role})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
			"userName":     session.UserName,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		session := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				session = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), session, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Everything below needs an authenticated session.
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "summary":
		if r.Method == http.MethodGet && len(parts) == 2 {
			s.allow(w, session, rbac.ActionRead, func() (any, error) {
				return s.service.Summary(r.Context())
			})
			return
		}
	case "categories":
		if r.Method == http.MethodGet && len(parts) == 3 {
			s.allow(w, session, rbac.ActionRead, func() (any, error) {
				return s.service.CategoryTable(parts[2])
			})
			return
		}
	case "entities":
		s.handleEntities(w, r, session, parts)
		return
	case "drafts":
		s.handleDrafts(w, r, session, parts)
		return
	case "uploads":
		if r.Method == http.MethodPost && len(parts) == 2 {
			s.handleUpload(w, r, session)
			return
		}
	case "search":
		if r.Method == http.MethodGet && len(parts) == 2 {
			s.handleSearch(w, r, session)
			return
		}
	case "contributions":
		s.handleContributions(w, r, session, parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// allow runs fn when the session's role permits action, writing the JSON
// result or the mapped error.
func (s *HTTPServer) allow(w http.ResponseWriter, session Session, action rbac.Action, fn func() (any, error)) {
	if !s.service.Can(session.Role, action) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}
	payload, err := fn()
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleEntities(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch len(parts) {
	case 2:
		s.allow(w, session, rbac.ActionRead, func() (any, error) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			return s.service.ListEntities(r.Context(),
				strings.TrimSpace(r.URL.Query().Get("type")),
				strings.TrimSpace(r.URL.Query().Get("q")),
				limit, offset)
		})
	case 4:
		s.allow(w, session, rbac.ActionRead, func() (any, error) {
			return s.service.GetEntity(r.Context(), parts[2], parts[3])
		})
	case 5:
		entityType, entityID := parts[2], parts[3]
		switch parts[4] {
		case "form":
			s.allow(w, session, rbac.ActionContribute, func() (any, error) {
				return s.service.EntityForm(r.Context(), entityType, entityID)
			})
		case "history":
			s.allow(w, session, rbac.ActionRead, func() (any, error) {
				return s.service.EntityHistory(r.Context(), entityType, entityID)
			})
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDrafts(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) != 4 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	entityType, entityID := parts[2], parts[3]

	switch r.Method {
	case http.MethodPut:
		s.allow(w, session, rbac.ActionContribute, func() (any, error) {
			var body DraftInput
			if err := decodeBody(r, &body); err != nil {
				return nil, validationError(err.Error(), nil)
			}
			return s.service.SaveDraft(r.Context(), session, entityType, entityID, body)
		})
	case http.MethodGet:
		s.allow(w, session, rbac.ActionContribute, func() (any, error) {
			return s.service.GetDraft(r.Context(), session, entityType, entityID)
		})
	case http.MethodDelete:
		s.allow(w, session, rbac.ActionContribute, func() (any, error) {
			if err := s.service.DeleteDraft(r.Context(), session, entityType, entityID); err != nil {
				return nil, err
			}
			return map[string]any{"ok": true}, nil
		})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, session Session) {
	if !s.service.Can(session.Role, rbac.ActionContribute) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}
	mediaStore := s.service.MediaStore()
	if mediaStore == nil {
		writeError(w, http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Media uploads are not configured", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(media.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid multipart body", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Missing file field", nil)
		return
	}
	defer file.Close()

	kind := strings.TrimSpace(r.FormValue("kind"))
	if kind == "" {
		kind = "cover"
	}

	url, err := mediaStore.Upload(r.Context(), kind, header.Header.Get("Content-Type"), file, header.Size)
	if errors.Is(err, media.ErrUnsupportedType) {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unsupported media type", nil)
		return
	}
	if err != nil {
		log.Printf("app: upload: %v", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Upload failed", nil)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"url": url})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	s.allow(w, session, rbac.ActionRead, func() (any, error) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		return s.service.Search(search.Query{
			Text:             strings.TrimSpace(r.URL.Query().Get("q")),
			FilterType:       search.ResultType(r.URL.Query().Get("type")),
			FilterEntityType: strings.TrimSpace(r.URL.Query().Get("entityType")),
			FilterStatus:     strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:            limit,
			Offset:           offset,
		})
	})
}

func (s *HTTPServer) handleContributions(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodPost:
		s.allow(w, session, rbac.ActionContribute, func() (any, error) {
			var body CreateContributionInput
			if err := decodeBody(r, &body); err != nil {
				return nil, validationError(err.Error(), nil)
			}
			return s.service.CreateContribution(r.Context(), session, body)
		})
	case len(parts) == 2 && r.Method == http.MethodGet:
		s.allow(w, session, rbac.ActionReview, func() (any, error) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			return s.service.ListContributions(r.Context(), store.ContributionFilter{
				Status:     strings.TrimSpace(r.URL.Query().Get("status")),
				EntityType: strings.TrimSpace(r.URL.Query().Get("entityType")),
				EntityID:   strings.TrimSpace(r.URL.Query().Get("entityId")),
				Limit:      limit,
				Offset:     offset,
			})
		})
	case len(parts) == 3 && r.Method == http.MethodGet:
		s.allow(w, session, rbac.ActionReview, func() (any, error) {
			return s.service.GetContribution(r.Context(), parts[2])
		})
	case len(parts) == 4 && r.Method == http.MethodGet && parts[3] == "review":
		s.allow(w, session, rbac.ActionReview, func() (any, error) {
			return s.service.ReviewContribution(r.Context(), parts[2])
		})
	case len(parts) == 4 && r.Method == http.MethodPost && parts[3] == "approve":
		s.allow(w, session, rbac.ActionReview, func() (any, error) {
			var body struct {
				AdminNotes string `json:"adminNotes"`
			}
			if err := decodeBody(r, &body); err != nil {
				return nil, validationError(err.Error(), nil)
			}
			return s.service.ApproveContribution(r.Context(), session, parts[2], body.AdminNotes)
		})
	case len(parts) == 4 && r.Method == http.MethodPost && parts[3] == "reject":
		s.allow(w, session, rbac.ActionReview, func() (any, error) {
			var body struct {
				RejectionReason string `json:"rejectionReason"`
				AdminNotes      string `json:"adminNotes"`
			}
			if err := decodeBody(r, &body); err != nil {
				return nil, validationError(err.Error(), nil)
			}
			return s.service.RejectContribution(r.Context(), session, parts[2], body.RejectionReason, body.AdminNotes)
		})
	case len(parts) == 4 && r.Method == http.MethodGet && parts[3] == "export":
		s.handleExport(w, r, session, parts[2])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session, contributionID string) {
	if !s.service.Can(session.Role, rbac.ActionReview) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "html":
		html, err := s.service.RenderReportHTML(r.Context(), contributionID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(html))
	case "pdf", "docx":
		result, err := s.service.ExportReport(r.Context(), contributionID, export.Format(format))
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export renderer is not installed", nil)
			return
		}
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
	default:
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unsupported export format", map[string]any{"format": format})
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
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
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
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

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// Auth handlers for email/password authentication

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := s.service.AuthPasswordService().SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		if err.Error() == "email already registered" {
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
		return
	}

	response := map[string]any{
		"userId":  resp.UserID,
		"message": "Please check your email to verify your account",
	}
	// Dev bypass: hand the token back when no SMTP is configured
	if !s.service.SMTPConfigured() {
		response["devVerificationToken"] = resp.VerificationToken
		response["message"] = "Account created. Verify your email to continue."
	}

	writeJSON(w, http.StatusCreated, response)
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := s.service.AuthPasswordService().SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	if resp.RequiresVerify {
		writeError(w, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before signing in", nil)
		return
	}

	session, err := s.service.CreateSession(r.Context(), resp.User.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SESSION_FAILED", "Failed to create session", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	if err := s.service.AuthPasswordService().VerifyEmail(r.Context(), body.Token); err != nil {
		writeError(w, http.StatusBadRequest, "VERIFICATION_FAILED", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}
