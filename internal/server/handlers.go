package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/cgistudio-api/internal/pipeline"
	"github.com/maauso/cgistudio-api/internal/project"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	repo               project.Repository
	orchestrator       *pipeline.Orchestrator
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateProject only creates the project and returns
// immediately without starting a pipeline run.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(repo project.Repository, orchestrator *pipeline.Orchestrator, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		repo:               repo,
		orchestrator:       orchestrator,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// creditCost is the fixed user-facing quota charge per project.
func creditCost(contentType string, durationSeconds int, includeAudio bool) int {
	if contentType != string(project.ContentVideo) {
		return 1
	}
	cost := 5
	if durationSeconds == 10 {
		cost = 10
	}
	if includeAudio {
		cost += 2
	}
	return cost
}

// CreateProject handles POST /projects requests. It pre-deducts the user's
// credits, persists the project in pending state, and starts the pipeline
// run fire-and-forget, fully decoupled from this request's lifecycle.
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if req.ContentType == string(project.ContentVideo) && req.VideoDurationSeconds == 0 {
		req.VideoDurationSeconds = 5
	}

	user, err := h.repo.GetUser(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, project.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found", "USER_NOT_FOUND")
			return
		}
		h.logger.Error("failed to load user",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load user", "USER_FETCH_FAILED")
		return
	}

	cost := creditCost(req.ContentType, req.VideoDurationSeconds, req.IncludeAudio)
	if user.CreditBalance < cost {
		writeError(w, http.StatusPaymentRequired, "insufficient credits", "INSUFFICIENT_CREDITS")
		return
	}
	if err := h.repo.UpdateUserCredits(r.Context(), user.ID, user.CreditBalance-cost); err != nil {
		h.logger.Error("failed to deduct credits",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to deduct credits", "CREDIT_DEDUCTION_FAILED")
		return
	}

	proj := project.New(req.UserID)
	proj.ProductImageRef = req.ProductImageURL
	proj.SceneImageRef = req.SceneImageURL
	proj.SceneVideoRef = req.SceneVideoURL
	proj.Description = req.Description
	proj.ContentType = project.ContentType(req.ContentType)
	proj.VideoDurationSeconds = req.VideoDurationSeconds
	proj.IncludeAudio = req.IncludeAudio
	proj.CreditsUsed = cost

	if err := h.repo.CreateProject(r.Context(), proj); err != nil {
		h.logger.Error("failed to create project",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create project", "PROJECT_CREATION_FAILED")
		return
	}

	// Start the run in the background with a detached context so it
	// outlives this request.
	if h.enableAsyncProcess {
		go func(ctx context.Context, projectID string) {
			if runErr := h.orchestrator.Run(ctx, projectID); runErr != nil {
				h.logger.Error("pipeline run ended with error",
					slog.String("project_id", projectID),
					slog.String("error", runErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), proj.ID)
	}

	h.logger.Info("project created",
		slog.String("project_id", proj.ID),
		slog.String("content_type", req.ContentType),
		slog.Int("credits_used", cost),
	)

	writeJSON(w, http.StatusAccepted, CreateProjectResponse{
		ID:          proj.ID,
		Status:      string(proj.Status),
		CreditsUsed: cost,
	})
}

// GetProject handles GET /projects/{id} requests.
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project ID is required", "MISSING_PROJECT_ID")
		return
	}

	proj, err := h.repo.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found", "PROJECT_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get project",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get project", "PROJECT_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, ProjectResponse{
		ID:                   proj.ID,
		Status:               string(proj.Status),
		Progress:             proj.Progress,
		ContentType:          string(proj.ContentType),
		EnhancedPrompt:       proj.EnhancedPrompt,
		Error:                proj.ErrorMessage,
		OutputImageURL:       proj.OutputImageRef,
		OutputVideoURL:       proj.OutputVideoRef,
		CreditsUsed:          proj.CreditsUsed,
		ActualCostMillicents: proj.ActualCostMillicents,
	})
}

// CancelProject handles POST /projects/{id}/cancel requests. Cancellation
// is cooperative: the run stops at its next suspension point.
func (h *Handlers) CancelProject(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project ID is required", "MISSING_PROJECT_ID")
		return
	}

	if _, err := h.repo.GetProject(r.Context(), projectID); err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found", "PROJECT_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get project",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get project", "PROJECT_FETCH_FAILED")
		return
	}

	if !h.orchestrator.Registry().Cancel(projectID) {
		writeError(w, http.StatusConflict, "no active run for project", "NO_ACTIVE_RUN")
		return
	}

	h.logger.Info("run cancellation requested",
		slog.String("project_id", projectID),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// CreateUser handles POST /users requests. User provisioning is a thin
// development surface; real deployments front this with their own auth.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if err := h.repo.SaveUser(r.Context(), &project.User{
		ID:            req.ID,
		CreditBalance: req.CreditBalance,
	}); err != nil {
		h.logger.Error("failed to save user",
			slog.String("user_id", req.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to save user", "USER_SAVE_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
