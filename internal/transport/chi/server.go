// Package chi is the HTTP transport: it decodes specification
// documents from request bodies, dispatches them to the catalog and
// registry services, and maps domain errors to status codes.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	queryspec "github.com/arcadia-data/queryspec"
	"github.com/arcadia-data/queryspec/internal/catalog"
	"github.com/arcadia-data/queryspec/internal/db"
	"github.com/arcadia-data/queryspec/internal/metrics"
	"github.com/arcadia-data/queryspec/internal/registry"
	healthuc "github.com/arcadia-data/queryspec/internal/usecase/health"
)

// maxBodyBytes caps specification documents; wire documents are small.
const maxBodyBytes = 1 << 20

// Error codes returned in error responses.
const (
	codeBadRequest         = "bad_request"
	codeValidationFailed   = "validation_failed"
	codeInvalidPagination  = "invalid_pagination"
	codeCollectionNotFound = "collection_not_found"
	codeSpecNotFound       = "specification_not_found"
	codeEntityNotFound     = "entity_not_found"
	codeMultipleMatches    = "multiple_matches"
	codeStoreUnavailable   = "store_unavailable"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the query specification API.
type Server struct {
	catalog       *catalog.Service
	registry      *registry.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	cat *catalog.Service,
	reg *registry.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		catalog:  cat,
		registry: reg,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(queryspec.ErrInvalidPagination, http.StatusBadRequest, codeInvalidPagination),
		sentinelHandler(queryspec.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(queryspec.ErrInvalidIncludeChain, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(queryspec.ErrMultipleMatches, http.StatusConflict, codeMultipleMatches),
		sentinelHandler(catalog.ErrUnknownCollection, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(registry.ErrSpecNotFound, http.StatusNotFound, codeSpecNotFound),
		sentinelHandler(registry.ErrInvalidSpec, http.StatusBadRequest, codeValidationFailed),
		storeErrorHandler,
	}
	return s
}

// Routes mounts every handler on the given router.
func (s *Server) Routes(r chirouter.Router) {
	r.Route("/api/v1", func(r chirouter.Router) {
		r.Get("/catalog", s.ListCollections)
		r.Post("/catalog/{collection}/query", s.QueryCollection)
		r.Post("/catalog/{collection}/single", s.SingleFromCollection)
		r.Post("/catalog/{collection}/delete", s.DeleteFromCollection)

		r.Post("/specifications", s.SaveSpecification)
		r.Get("/specifications", s.ListSpecifications)
		r.Get("/specifications/{id}", s.GetSpecification)
		r.Put("/specifications/{id}", s.UpdateSpecification)
		r.Delete("/specifications/{id}", s.DeleteSpecification)
		r.Post("/specifications/{id}/run", s.RunSpecification)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// pagedResponse is the wire envelope for paged query results.
type pagedResponse struct {
	Items      []any `json:"items"`
	TotalCount int   `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
}

// deleteResponse is the wire envelope for bulk deletions.
type deleteResponse struct {
	SoftDeleted    int `json:"soft_deleted"`
	RemainingCount int `json:"remaining_count"`
}

// ListCollections handles GET /catalog.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"collections": s.catalog.Collections()})
}

// QueryCollection handles POST /catalog/{collection}/query.
func (s *Server) QueryCollection(w http.ResponseWriter, r *http.Request) {
	collection := chirouter.URLParam(r, "collection")
	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}
	s.runQuery(w, r, collection, doc)
}

// SingleFromCollection handles POST /catalog/{collection}/single.
func (s *Server) SingleFromCollection(w http.ResponseWriter, r *http.Request) {
	collection := chirouter.URLParam(r, "collection")
	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}

	start := time.Now()
	item, found, err := s.catalog.Single(r.Context(), collection, doc)
	s.observeQuery(collection, "single", start, err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, codeEntityNotFound, "no entity matches the specification")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteFromCollection handles POST /catalog/{collection}/delete.
func (s *Server) DeleteFromCollection(w http.ResponseWriter, r *http.Request) {
	collection := chirouter.URLParam(r, "collection")
	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := s.catalog.Delete(r.Context(), collection, doc)
	s.observeQuery(collection, "delete", start, err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		SoftDeleted:    res.SoftDeleted,
		RemainingCount: len(res.Remaining),
	})
}

// saveSpecRequest is the body for saving or updating a specification.
type saveSpecRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Document    json.RawMessage `json:"document"`
}

// SaveSpecification handles POST /specifications.
func (s *Server) SaveSpecification(w http.ResponseWriter, r *http.Request) {
	var req saveSpecRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	spec, err := s.registry.Save(r.Context(), req.Name, req.Description, req.Document)
	s.observeRegistry("save", err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, spec)
}

// ListSpecifications handles GET /specifications.
func (s *Server) ListSpecifications(w http.ResponseWriter, r *http.Request) {
	specs, err := s.registry.List(r.Context())
	s.observeRegistry("list", err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": specs})
}

// GetSpecification handles GET /specifications/{id}.
func (s *Server) GetSpecification(w http.ResponseWriter, r *http.Request) {
	id, ok := specID(w, r)
	if !ok {
		return
	}
	spec, err := s.registry.Get(r.Context(), id)
	s.observeRegistry("get", err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

// UpdateSpecification handles PUT /specifications/{id}.
func (s *Server) UpdateSpecification(w http.ResponseWriter, r *http.Request) {
	id, ok := specID(w, r)
	if !ok {
		return
	}
	var req saveSpecRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	spec, err := s.registry.Update(r.Context(), id, req.Name, req.Description, req.Document)
	s.observeRegistry("update", err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

// DeleteSpecification handles DELETE /specifications/{id}.
func (s *Server) DeleteSpecification(w http.ResponseWriter, r *http.Request) {
	id, ok := specID(w, r)
	if !ok {
		return
	}
	err := s.registry.Delete(r.Context(), id)
	s.observeRegistry("delete", err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runSpecRequest names the collection a saved specification runs against.
type runSpecRequest struct {
	Collection string `json:"collection"`
}

// RunSpecification handles POST /specifications/{id}/run.
func (s *Server) RunSpecification(w http.ResponseWriter, r *http.Request) {
	id, ok := specID(w, r)
	if !ok {
		return
	}
	var req runSpecRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Collection == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "collection is required")
		return
	}

	spec, err := s.registry.Get(r.Context(), id)
	s.observeRegistry("run", err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.runQuery(w, r, req.Collection, spec.Document)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request, collection string, doc json.RawMessage) {
	start := time.Now()
	res, err := s.catalog.Query(r.Context(), collection, doc)
	s.observeQuery(collection, "query", start, err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	metrics.QueryResultSize.WithLabelValues(collection).Observe(float64(len(res.Items)))

	items := res.Items
	if items == nil {
		items = []any{}
	}
	writeJSON(w, http.StatusOK, pagedResponse{
		Items:      items,
		TotalCount: res.TotalCount,
		Page:       res.Page,
		PageSize:   res.PageSize,
	})
}

// readDocument reads the request body as a specification document. An
// empty body means an empty specification.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	return data, true
}

func (s *Server) observeQuery(collection, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QueryExecutionsTotal.WithLabelValues(collection, operation, status).Inc()
	metrics.QueryDuration.WithLabelValues(collection, operation).Observe(time.Since(start).Seconds())
}

func (s *Server) observeRegistry(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SavedSpecOperationsTotal.WithLabelValues(operation, status).Inc()
}

func specID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chirouter.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid specification id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		queryspec.ErrValidation,
		queryspec.ErrInvalidPagination,
		queryspec.ErrInvalidIncludeChain,
		queryspec.ErrMultipleMatches,
		catalog.ErrUnknownCollection,
		registry.ErrSpecNotFound,
		registry.ErrInvalidSpec,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// storeErrorHandler maps database failures to 502 without leaking the
// underlying command error.
func storeErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	writeError(w, http.StatusBadGateway, codeStoreUnavailable, "specification store unavailable")
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
