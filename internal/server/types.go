// Package server provides the HTTP server for the CGI Studio API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// CreateProjectRequest is the HTTP request body for creating a new project.
// Exactly one of scene_image_url and scene_video_url must be set.
type CreateProjectRequest struct {
	// UserID is the owning user.
	UserID string `json:"user_id" validate:"required"`
	// ProductImageURL references the product photo.
	ProductImageURL string `json:"product_image_url" validate:"required"`
	// SceneImageURL references the scene photo.
	SceneImageURL string `json:"scene_image_url" validate:"required_without=SceneVideoURL,excluded_with=SceneVideoURL"`
	// SceneVideoURL references a scene video.
	SceneVideoURL string `json:"scene_video_url" validate:"required_without=SceneImageURL,excluded_with=SceneImageURL"`
	// Description is the free-text user description, in any language.
	Description string `json:"description"`
	// ContentType is the requested output kind: "image" or "video".
	ContentType string `json:"content_type" validate:"required,oneof=image video"`
	// VideoDurationSeconds is the requested video duration (5 or 10).
	VideoDurationSeconds int `json:"video_duration_seconds" validate:"omitempty,oneof=5 10"`
	// IncludeAudio requests audio augmentation of the generated video.
	IncludeAudio bool `json:"include_audio"`
}

// CreateProjectResponse is the HTTP response after creating a project.
type CreateProjectResponse struct {
	// ID is the unique identifier for the created project.
	ID string `json:"id"`
	// Status is the initial project status.
	Status string `json:"status"`
	// CreditsUsed is the quota charge fixed at creation.
	CreditsUsed int `json:"credits_used"`
}

// ProjectResponse is the HTTP response for getting project details.
type ProjectResponse struct {
	// ID is the unique identifier for the project.
	ID string `json:"id"`
	// Status is the current pipeline status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// ContentType is the requested output kind.
	ContentType string `json:"content_type"`
	// EnhancedPrompt is the derived prompt, once stage 1 has run.
	EnhancedPrompt string `json:"enhanced_prompt,omitempty"`
	// Error contains the failure message if the run failed.
	Error string `json:"error,omitempty"`
	// OutputImageURL references the composited image, once produced.
	OutputImageURL string `json:"output_image_url,omitempty"`
	// OutputVideoURL references the generated video, once produced.
	OutputVideoURL string `json:"output_video_url,omitempty"`
	// CreditsUsed is the quota charge fixed at creation.
	CreditsUsed int `json:"credits_used"`
	// ActualCostMillicents is the metered cost, written at run termination.
	ActualCostMillicents int64 `json:"actual_cost_millicents"`
}

// CreateUserRequest is the HTTP request body for provisioning a user.
type CreateUserRequest struct {
	// ID is the unique identifier for the user.
	ID string `json:"id" validate:"required"`
	// CreditBalance is the starting credit balance.
	CreditBalance int `json:"credit_balance" validate:"min=0"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
