// Package project provides the Project aggregate for the generation
// pipeline. It includes the persisted status state machine the orchestrator
// drives, as well as repository interfaces for persistence.
package project

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ContentType is the kind of output a project requests.
type ContentType string

const (
	// ContentImage requests a composited image only.
	ContentImage ContentType = "image"
	// ContentVideo requests a composited image animated into a video.
	ContentVideo ContentType = "video"
)

// IsValid returns true if the content type is valid.
func (t ContentType) IsValid() bool {
	return t == ContentImage || t == ContentVideo
}

// Status represents the current state of a Project's pipeline run.
type Status string

const (
	// StatusPending indicates the project was created but no run has started.
	StatusPending Status = "pending"
	// StatusProcessing indicates a run has claimed the project.
	StatusProcessing Status = "processing"
	// StatusEnhancingPrompt indicates the prompt-enhancement stage is active.
	StatusEnhancingPrompt Status = "enhancing_prompt"
	// StatusGeneratingImage indicates the image-composition stage is active.
	StatusGeneratingImage Status = "generating_image"
	// StatusGeneratingVideo indicates the video-generation stage is active.
	StatusGeneratingVideo Status = "generating_video"
	// StatusCompleted indicates the run finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the run terminated with an error.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed. A run may
// fail from any non-terminal state; the video stage is skipped entirely for
// image-only projects, so generating_image may complete directly.
var validTransitions = map[Status][]Status{
	StatusPending:         {StatusProcessing, StatusFailed},
	StatusProcessing:      {StatusEnhancingPrompt, StatusFailed},
	StatusEnhancingPrompt: {StatusGeneratingImage, StatusFailed},
	StatusGeneratingImage: {StatusGeneratingVideo, StatusCompleted, StatusFailed},
	StatusGeneratingVideo: {StatusCompleted, StatusFailed},
	StatusCompleted:       {},
	StatusFailed:          {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Project is the unit of work and the persisted state machine instance.
type Project struct {
	mu sync.RWMutex

	// ID is the unique identifier for this project.
	ID string
	// UserID is the owning user.
	UserID string

	// ProductImageRef references the product photo.
	ProductImageRef string
	// SceneImageRef references the scene photo. Mutually exclusive with
	// SceneVideoRef.
	SceneImageRef string
	// SceneVideoRef references a scene video. Mutually exclusive with
	// SceneImageRef.
	SceneVideoRef string
	// Description is the free-text user description.
	Description string
	// ContentType is the requested output kind.
	ContentType ContentType
	// VideoDurationSeconds is the requested video duration (5 or 10).
	VideoDurationSeconds int
	// IncludeAudio requests audio augmentation of the generated video.
	IncludeAudio bool

	// Status is the current pipeline state.
	Status Status
	// Progress is the percentage of completion (0-100), monotonic within a run.
	Progress int
	// EnhancedPrompt is the derived prompt from the enhancement stage.
	EnhancedPrompt string
	// ErrorMessage is set only on terminal failure.
	ErrorMessage string

	// OutputImageRef references the composited image.
	OutputImageRef string
	// OutputVideoRef references the generated video.
	OutputVideoRef string

	// CreditsUsed is the user-facing quota charge, fixed at creation.
	CreditsUsed int
	// ActualCostMillicents is the metered real cost, written once at run
	// termination.
	ActualCostMillicents int64

	// VideoTaskID is the last-known external video task, persisted as soon
	// as the remote job is created so an interrupted run can be resumed.
	VideoTaskID string
	// AudioTaskID is the last-known external audio task.
	AudioTaskID string

	// RunID is the token of the active run; empty when no run is active.
	RunID string

	// CreatedAt is when the project was created.
	CreatedAt time.Time
	// UpdatedAt is when the project was last updated.
	UpdatedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Project in pending status with a generated ID.
func New(userID string) *Project {
	now := time.Now()
	return &Project{
		ID:        "prj-" + uuid.NewString(),
		UserID:    userID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the project status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (p *Project) TransitionTo(status Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transitionLocked(status)
}

func (p *Project) transitionLocked(status Status) error {
	if !canTransition(p.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, status)
	}

	p.Status = status
	p.UpdatedAt = time.Now()
	if status.IsTerminal() {
		p.CompletedAt = p.UpdatedAt
	}
	return nil
}

// GetStatus returns the current project status (thread-safe).
func (p *Project) GetStatus() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status
}

// Apply mutates the project with the non-nil fields of the update.
// A status change goes through the transition table and fails with
// ErrInvalidTransition when not allowed; no other field is touched in that
// case.
func (p *Project) Apply(u Update) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if u.Status != nil && *u.Status != p.Status {
		if err := p.transitionLocked(*u.Status); err != nil {
			return err
		}
	}
	if u.Progress != nil {
		progress := *u.Progress
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		p.Progress = progress
	}
	if u.EnhancedPrompt != nil {
		p.EnhancedPrompt = *u.EnhancedPrompt
	}
	if u.ErrorMessage != nil {
		p.ErrorMessage = *u.ErrorMessage
	}
	if u.OutputImageRef != nil {
		p.OutputImageRef = *u.OutputImageRef
	}
	if u.OutputVideoRef != nil {
		p.OutputVideoRef = *u.OutputVideoRef
	}
	if u.VideoTaskID != nil {
		p.VideoTaskID = *u.VideoTaskID
	}
	if u.AudioTaskID != nil {
		p.AudioTaskID = *u.AudioTaskID
	}
	if u.ActualCostMillicents != nil {
		p.ActualCostMillicents = *u.ActualCostMillicents
	}
	if u.RunID != nil {
		p.RunID = *u.RunID
	}
	p.UpdatedAt = time.Now()
	return nil
}

// ClaimRun compare-and-sets the run token. It fails when the project has
// terminated or another run already holds the token.
func (p *Project) ClaimRun(runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Status.IsTerminal() {
		return ErrProjectTerminal
	}
	if p.RunID != "" {
		return ErrRunInProgress
	}
	p.RunID = runID
	p.UpdatedAt = time.Now()
	return nil
}

// Clone creates a deep copy of the project for safe reads.
func (p *Project) Clone() *Project {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return &Project{
		ID:                   p.ID,
		UserID:               p.UserID,
		ProductImageRef:      p.ProductImageRef,
		SceneImageRef:        p.SceneImageRef,
		SceneVideoRef:        p.SceneVideoRef,
		Description:          p.Description,
		ContentType:          p.ContentType,
		VideoDurationSeconds: p.VideoDurationSeconds,
		IncludeAudio:         p.IncludeAudio,
		Status:               p.Status,
		Progress:             p.Progress,
		EnhancedPrompt:       p.EnhancedPrompt,
		ErrorMessage:         p.ErrorMessage,
		OutputImageRef:       p.OutputImageRef,
		OutputVideoRef:       p.OutputVideoRef,
		CreditsUsed:          p.CreditsUsed,
		ActualCostMillicents: p.ActualCostMillicents,
		VideoTaskID:          p.VideoTaskID,
		AudioTaskID:          p.AudioTaskID,
		RunID:                p.RunID,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		CompletedAt:          p.CompletedAt,
	}
}

// Update is a partial mutation of a Project. Nil fields are left untouched.
type Update struct {
	Status               *Status
	Progress             *int
	EnhancedPrompt       *string
	ErrorMessage         *string
	OutputImageRef       *string
	OutputVideoRef       *string
	VideoTaskID          *string
	AudioTaskID          *string
	ActualCostMillicents *int64
	RunID                *string
}

// User is the minimal owner record the pipeline's surrounding layers need:
// an identity and a credit balance.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// CreditBalance is the user's remaining credits.
	CreditBalance int
}
