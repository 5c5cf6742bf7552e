package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/engine"
	"github.com/Hamza7661/Assistly-Backend-sub000/internal/search"
	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger}
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
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/context" {
		s.handleContext(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	segments := splitPath(r.URL.Path)

	// /api/tenants/{id}/invalidate, /api/tenants/{id}/integration
	if len(segments) == 4 && segments[0] == "api" && segments[1] == "tenants" {
		tenantID := segments[2]
		switch {
		case r.Method == http.MethodPost && segments[3] == "invalidate":
			s.handleInvalidate(w, r, tenantID)
			return
		case r.Method == http.MethodGet && segments[3] == "integration":
			s.handleGetIntegration(w, r, tenantID)
			return
		case r.Method == http.MethodPut && segments[3] == "integration":
			s.handlePutIntegration(w, r, tenantID)
			return
		}
	}

	// /api/faq, /api/faq/{id}
	if len(segments) >= 2 && segments[0] == "api" && segments[1] == "faq" {
		switch {
		case r.Method == http.MethodGet && len(segments) == 2:
			s.handleListFAQ(w, r)
			return
		case r.Method == http.MethodPost && len(segments) == 2:
			s.handleCreateFAQ(w, r)
			return
		case r.Method == http.MethodPut && len(segments) == 3:
			s.handleUpdateFAQ(w, r, segments[2])
			return
		case r.Method == http.MethodDelete && len(segments) == 3:
			s.handleDeleteFAQ(w, r, segments[2])
			return
		}
	}

	// /api/service-plans, /api/service-plans/{id}
	if len(segments) >= 2 && segments[0] == "api" && segments[1] == "service-plans" {
		switch {
		case r.Method == http.MethodGet && len(segments) == 2:
			s.handleListPlans(w, r)
			return
		case r.Method == http.MethodPost && len(segments) == 2:
			s.handleCreatePlan(w, r)
			return
		case r.Method == http.MethodPut && len(segments) == 3:
			s.handleUpdatePlan(w, r, segments[2])
			return
		case r.Method == http.MethodDelete && len(segments) == 3:
			s.handleDeletePlan(w, r, segments[2])
			return
		}
	}

	// /api/workflows, /api/workflows/{id}
	if len(segments) >= 2 && segments[0] == "api" && segments[1] == "workflows" {
		switch {
		case r.Method == http.MethodGet && len(segments) == 2:
			s.handleListWorkflows(w, r)
			return
		case r.Method == http.MethodPost && len(segments) == 2:
			s.handleCreateWorkflow(w, r)
			return
		case r.Method == http.MethodPut && len(segments) == 3:
			s.handleUpdateWorkflow(w, r, segments[2])
			return
		case r.Method == http.MethodDelete && len(segments) == 3:
			s.handleDeleteWorkflow(w, r, segments[2])
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
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

	searchStatus := "ok"
	if !s.service.SearchHealthy() {
		searchStatus = "degraded"
	}
	checks["search"] = map[string]any{"status": searchStatus}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// handleContext serves GET /api/context. Exactly one of appId, phone, or
// ownerId must be present.
func (s *HTTPServer) handleContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var keys []engine.Key
	if v := strings.TrimSpace(q.Get("appId")); v != "" {
		keys = append(keys, engine.Key{Kind: engine.KeyApp, Value: v})
	}
	if v := strings.TrimSpace(q.Get("phone")); v != "" {
		keys = append(keys, engine.Key{Kind: engine.KeyPhone, Value: v})
	}
	if v := strings.TrimSpace(q.Get("ownerId")); v != "" {
		keys = append(keys, engine.Key{Kind: engine.KeyOwner, Value: v})
	}
	if len(keys) != 1 {
		writeError(w, http.StatusBadRequest, "INVALID_KEY",
			"exactly one of appId, phone, or ownerId is required", nil)
		return
	}

	cx, err := s.service.Context(r.Context(), keys[0])
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, cx)
}

func (s *HTTPServer) handleInvalidate(w http.ResponseWriter, r *http.Request, tenantID string) {
	if err := s.service.InvalidateTenant(r.Context(), tenantID); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID := strings.TrimSpace(q.Get("tenantId"))
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "tenantId is required", nil)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	resp := s.service.Search(search.Query{
		TenantID:   tenantID,
		Text:       q.Get("q"),
		FilterType: search.ResultType(q.Get("type")),
		Limit:      limit,
		Offset:     offset,
	})
	writeJSON(w, http.StatusOK, resp)
}

// faqBody is the wire shape for FAQ create and update requests.
type faqBody struct {
	TenantID string `json:"tenantId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Active   *bool  `json:"active"`
}

func faqResponse(entry store.FAQEntry) map[string]any {
	return map[string]any{
		"id":        entry.ID,
		"tenantId":  entry.TenantID,
		"question":  entry.Question,
		"answer":    entry.Answer,
		"active":    entry.Active,
		"createdAt": entry.CreatedAt,
		"updatedAt": entry.UpdatedAt,
	}
}

func (s *HTTPServer) handleListFAQ(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenantId"))
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "tenantId is required", nil)
		return
	}
	entries, err := s.service.ListFAQ(r.Context(), tenantID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		out = append(out, faqResponse(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"faq": out})
}

func (s *HTTPServer) handleCreateFAQ(w http.ResponseWriter, r *http.Request) {
	var body faqBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	entry := store.FAQEntry{
		TenantID: body.TenantID,
		Question: body.Question,
		Answer:   body.Answer,
		Active:   body.Active == nil || *body.Active,
	}
	created, err := s.service.CreateFAQ(r.Context(), entry)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, faqResponse(created))
}

func (s *HTTPServer) handleUpdateFAQ(w http.ResponseWriter, r *http.Request, id string) {
	var body faqBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	entry := store.FAQEntry{
		ID:       id,
		TenantID: body.TenantID,
		Question: body.Question,
		Answer:   body.Answer,
		Active:   body.Active == nil || *body.Active,
	}
	updated, err := s.service.UpdateFAQ(r.Context(), entry)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, faqResponse(updated))
}

func (s *HTTPServer) handleDeleteFAQ(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteFAQ(r.Context(), id); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// planBody is the wire shape for service-plan create and update requests.
type planBody struct {
	TenantID          string                     `json:"tenantId"`
	Question          string                     `json:"question"`
	Answer            string                     `json:"answer"`
	AttachedWorkflows []store.WorkflowAttachment `json:"attachedWorkflows"`
	Active            *bool                      `json:"active"`
}

func planResponse(plan store.ServicePlan) map[string]any {
	attachments := plan.AttachedWorkflows
	if attachments == nil {
		attachments = []store.WorkflowAttachment{}
	}
	return map[string]any{
		"id":                plan.ID,
		"tenantId":          plan.TenantID,
		"question":          plan.Question,
		"answer":            plan.Answer,
		"attachedWorkflows": attachments,
		"active":            plan.Active,
		"createdAt":         plan.CreatedAt,
		"updatedAt":         plan.UpdatedAt,
	}
}

func (s *HTTPServer) handleListPlans(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenantId"))
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "tenantId is required", nil)
		return
	}
	plans, err := s.service.ListServicePlans(r.Context(), tenantID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	out := make([]map[string]any, 0, len(plans))
	for _, plan := range plans {
		out = append(out, planResponse(plan))
	}
	writeJSON(w, http.StatusOK, map[string]any{"servicePlans": out})
}

func (s *HTTPServer) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var body planBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	plan := store.ServicePlan{
		TenantID:          body.TenantID,
		Question:          body.Question,
		Answer:            body.Answer,
		AttachedWorkflows: body.AttachedWorkflows,
		Active:            body.Active == nil || *body.Active,
	}
	created, err := s.service.CreateServicePlan(r.Context(), plan)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, planResponse(created))
}

func (s *HTTPServer) handleUpdatePlan(w http.ResponseWriter, r *http.Request, id string) {
	var body planBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	plan := store.ServicePlan{
		ID:                id,
		TenantID:          body.TenantID,
		Question:          body.Question,
		Answer:            body.Answer,
		AttachedWorkflows: body.AttachedWorkflows,
		Active:            body.Active == nil || *body.Active,
	}
	updated, err := s.service.UpdateServicePlan(r.Context(), plan)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(updated))
}

func (s *HTTPServer) handleDeletePlan(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteServicePlan(r.Context(), id); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// workflowBody is the wire shape for workflow-node create and update requests.
type workflowBody struct {
	TenantID     string  `json:"tenantId"`
	Title        string  `json:"title"`
	Prompt       string  `json:"prompt"`
	QuestionKind int     `json:"questionKind"`
	IsRoot       bool    `json:"isRoot"`
	GroupID      *string `json:"groupId"`
	Order        int     `json:"order"`
	Active       *bool   `json:"active"`
}

func workflowResponse(node store.WorkflowNode) map[string]any {
	return map[string]any{
		"id":           node.ID,
		"tenantId":     node.TenantID,
		"title":        node.Title,
		"prompt":       node.Prompt,
		"questionKind": node.QuestionKind,
		"isRoot":       node.IsRoot,
		"groupId":      node.GroupID,
		"order":        node.SortOrder,
		"active":       node.Active,
		"createdAt":    node.CreatedAt,
		"updatedAt":    node.UpdatedAt,
	}
}

func (s *HTTPServer) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenantId"))
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "tenantId is required", nil)
		return
	}
	nodes, err := s.service.ListWorkflowNodes(r.Context(), tenantID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	out := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, workflowResponse(node))
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": out})
}

func (s *HTTPServer) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var body workflowBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	node := store.WorkflowNode{
		TenantID:     body.TenantID,
		Title:        body.Title,
		Prompt:       body.Prompt,
		QuestionKind: body.QuestionKind,
		IsRoot:       body.IsRoot,
		GroupID:      body.GroupID,
		SortOrder:    body.Order,
		Active:       body.Active == nil || *body.Active,
	}
	created, err := s.service.CreateWorkflowNode(r.Context(), node)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, workflowResponse(created))
}

func (s *HTTPServer) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request, id string) {
	var body workflowBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	node := store.WorkflowNode{
		ID:           id,
		TenantID:     body.TenantID,
		Title:        body.Title,
		Prompt:       body.Prompt,
		QuestionKind: body.QuestionKind,
		IsRoot:       body.IsRoot,
		GroupID:      body.GroupID,
		SortOrder:    body.Order,
		Active:       body.Active == nil || *body.Active,
	}
	updated, err := s.service.UpdateWorkflowNode(r.Context(), node)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, workflowResponse(updated))
}

func (s *HTTPServer) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteWorkflowNode(r.Context(), id); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// integrationBody is the wire shape for PUT integration requests.
type integrationBody struct {
	AssistantName       string                   `json:"assistantName"`
	CompanyName         string                   `json:"companyName"`
	Greeting            string                   `json:"greeting"`
	ValidateEmail       bool                     `json:"validateEmail"`
	ValidatePhoneNumber bool                     `json:"validatePhoneNumber"`
	GoogleReviewEnabled bool                     `json:"googleReviewEnabled"`
	GoogleReviewURL     string                   `json:"googleReviewUrl"`
	LeadTypes           []store.LeadTypeOverride `json:"leadTypes"`
}

func integrationResponse(in store.Integration) map[string]any {
	leadTypes := in.LeadTypes
	if leadTypes == nil {
		leadTypes = []store.LeadTypeOverride{}
	}
	return map[string]any{
		"id":                  in.ID,
		"assistantName":       in.AssistantName,
		"companyName":         in.CompanyName,
		"greeting":            in.Greeting,
		"validateEmail":       in.ValidateEmail,
		"validatePhoneNumber": in.ValidatePhoneNumber,
		"googleReviewEnabled": in.GoogleReviewEnabled,
		"googleReviewUrl":     in.GoogleReviewURL,
		"leadTypes":           leadTypes,
		"createdAt":           in.CreatedAt,
		"updatedAt":           in.UpdatedAt,
	}
}

func (s *HTTPServer) handleGetIntegration(w http.ResponseWriter, r *http.Request, tenantID string) {
	in, err := s.service.Integration(r.Context(), tenantID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, integrationResponse(in))
}

func (s *HTTPServer) handlePutIntegration(w http.ResponseWriter, r *http.Request, tenantID string) {
	var body integrationBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	in := store.Integration{
		AssistantName:       body.AssistantName,
		CompanyName:         body.CompanyName,
		Greeting:            body.Greeting,
		ValidateEmail:       body.ValidateEmail,
		ValidatePhoneNumber: body.ValidatePhoneNumber,
		GoogleReviewEnabled: body.GoogleReviewEnabled,
		GoogleReviewURL:     body.GoogleReviewURL,
		LeadTypes:           body.LeadTypes,
	}
	updated, err := s.service.PutIntegration(r.Context(), tenantID, in)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, integrationResponse(updated))
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

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
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
		if errors.Is(err, http.ErrBodyReadAfterClose) {
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
	if errors.Is(err, engine.ErrInvalidKey) {
		return http.StatusBadRequest, "INVALID_KEY", err.Error(), nil
	}
	if errors.Is(err, engine.ErrRepositoryUnavailable) {
		return http.StatusServiceUnavailable, "REPOSITORY_UNAVAILABLE", "Repository unavailable", nil
	}
	if errors.Is(err, engine.ErrNotFound) || errors.Is(err, store.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
