package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

var EmptyData = struct{}{}

// Statistics holds sandbox stats for the status endpoint.
type Statistics struct {
	version string
	called  uint64
	started time.Time
}

// APIHandler serves the sandbox books api.
type APIHandler struct {
	logger      *zap.Logger
	config      *Config
	stats       *Statistics
	clock       Clocker
	idsHandler  UIDGenerator
	metrics     *Metrics
	bookService BookServiceProvider
}

// NewAPIHandler provides a new instance of APIHandler.
func NewAPIHandler(logger *zap.Logger, config *Config, stats *Statistics, clock Clocker, ids UIDGenerator, metrics *Metrics, bs BookServiceProvider) *APIHandler {
	return &APIHandler{
		logger:      logger,
		config:      config,
		stats:       stats,
		clock:       clock,
		idsHandler:  ids,
		metrics:     metrics,
		bookService: bs,
	}
}

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status provides basics details about the sandbox to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(
		StatusResponse{
			RequestID: requestID,
			Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
			Message:   "Hello. Books sandbox api is available. Enjoy :)",
		},
	); err != nil {
		api.logger.Error("failed to send status response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// NotFound answers unknown routes with a json error.
func (api *APIHandler) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
		errResp := NewAPIError(requestID, http.StatusNotFound, "resource not found", EmptyData)
		api.sendError(r.Context(), w, errResp)
	})
}

// Metrics exposes the prometheus collectors of the sandbox. A handler built
// without collectors answers like an unknown route.
func (api *APIHandler) Metrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if api.metrics == nil {
		api.NotFound().ServeHTTP(w, r)
		return
	}
	api.metrics.Handler().ServeHTTP(w, r)
}

func (api *APIHandler) sendError(ctx context.Context, w http.ResponseWriter, errResp *APIError) {
	if err := WriteErrorResponse(ctx, w, errResp); err != nil {
		api.logger.Error("failed to send error response", zap.String("request.id", errResp.RequestID), zap.Error(err))
	}
}

func (api *APIHandler) send(ctx context.Context, w http.ResponseWriter, status int, data interface{}) {
	if err := WriteResponse(ctx, w, status, data); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", GetValueFromContext(ctx, RequestIDContextKey)), zap.Error(err))
	}
}
