package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/atelierhq/atelier-api/internal/api/shared"
	"github.com/atelierhq/atelier-api/internal/batch"
	"github.com/atelierhq/atelier-api/internal/config"
	"github.com/atelierhq/atelier-api/internal/domain"
	"github.com/atelierhq/atelier-api/internal/service"
)

// ImageFetcher resolves a reference image URL into an inline image.
type ImageFetcher interface {
	Materialize(ctx context.Context, url string) (*domain.Image, error)
}

// BatchHandler serves the batch lifecycle endpoints.
type BatchHandler struct {
	service   *service.BatchService
	fetcher   ImageFetcher // optional; nil rejects reference image requests
	defaults  config.BatchConfig
	validator *validator.Validate
	logger    *slog.Logger
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(
	svc *service.BatchService,
	fetcher ImageFetcher,
	defaults config.BatchConfig,
	logger *slog.Logger,
) *BatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{
		service:   svc,
		fetcher:   fetcher,
		defaults:  defaults,
		validator: validator.New(),
		logger:    logger.With(slog.String("component", "batch_handler")),
	}
}

// Create handles POST /api/batches: it validates the request, resolves
// reference images, and launches the batch, answering 202 with the
// running batch record.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	refs, err := h.resolveReferences(r.Context(), req.ReferenceImageURLs)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			"Failed to fetch reference image", err)
		return
	}

	cfg := domain.BatchConfig{
		Concurrency:    req.Concurrency,
		CountPerPrompt: req.CountPerPrompt,
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = h.defaults.DefaultConcurrency
	}
	if cfg.CountPerPrompt == 0 {
		cfg.CountPerPrompt = h.defaults.DefaultCountPerPrompt
	}

	b, err := h.service.StartBatch(r.Context(), service.StartBatchInput{
		PromptText: req.Prompt,
		Config:     cfg,
		Params: batch.Params{
			Model:           req.Model,
			AspectRatio:     req.AspectRatio,
			Size:            req.Size,
			OutputFormat:    req.OutputFormat,
			AutoOptimize:    req.AutoOptimize,
			ReferenceImages: refs,
		},
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, toBatchResponse(b))
}

// Get handles GET /api/batches/{id}.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}

	b, tasks, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := BatchDetailResponse{BatchResponse: toBatchResponse(b), Tasks: []TaskResponse{}}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(task))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// List handles GET /api/batches with optional limit and offset query
// parameters.
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	batches, err := h.service.ListBatches(r.Context(), limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := ListBatchesResponse{Batches: []BatchResponse{}}
	for _, b := range batches {
		resp.Batches = append(resp.Batches, toBatchResponse(b))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Cancel handles POST /api/batches/{id}/cancel. Cancellation is
// asynchronous: the response confirms the request, and the batch
// reaches its stopped state once in-flight tasks settle.
func (h *BatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.batchID(w, r)
	if !ok {
		return
	}

	if err := h.service.StopBatch(r.Context(), id); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]string{
		"id":     id.String(),
		"status": "stopping",
	})
}

// resolveReferences fetches each reference URL once; the resulting
// images are shared read-only by every task in the batch.
func (h *BatchHandler) resolveReferences(ctx context.Context, urls []string) ([]*domain.Image, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	if h.fetcher == nil {
		return nil, domain.ErrProtocol
	}

	refs := make([]*domain.Image, 0, len(urls))
	for _, url := range urls {
		img, err := h.fetcher.Materialize(ctx, url)
		if err != nil {
			return nil, err
		}
		refs = append(refs, img)
	}
	return refs, nil
}

func (h *BatchHandler) batchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid batch ID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
