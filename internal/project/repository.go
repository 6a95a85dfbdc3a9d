package project

import (
	"context"
	"errors"
)

// Static errors for repository operations.
var (
	// ErrProjectNotFound is returned when a project cannot be found by ID.
	ErrProjectNotFound = errors.New("project not found")
	// ErrUserNotFound is returned when a user cannot be found by ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrRunInProgress is returned when a run token cannot be claimed
	// because another run already holds the project.
	ErrRunInProgress = errors.New("a run is already in progress for this project")
	// ErrProjectTerminal is returned when a run is requested for a project
	// already in a terminal state.
	ErrProjectTerminal = errors.New("project is in a terminal state")
)

// Repository defines the interface for project and user persistence.
// It acts as a port; the orchestrator only ever reads projects and applies
// partial updates, never creates or deletes them.
type Repository interface {
	// CreateProject persists a new project.
	CreateProject(ctx context.Context, p *Project) error

	// GetProject retrieves a project by its unique identifier.
	// Returns ErrProjectNotFound if the project does not exist.
	GetProject(ctx context.Context, id string) (*Project, error)

	// UpdateProject applies a partial update to a project. Status changes
	// are validated against the transition table.
	UpdateProject(ctx context.Context, id string, u Update) error

	// ClaimRun compare-and-sets the run token for a project. It fails with
	// ErrRunInProgress when another run holds the token and with
	// ErrProjectTerminal when the project has already terminated, making
	// the one-run-per-project invariant enforced rather than assumed.
	ClaimRun(ctx context.Context, id, runID string) error

	// GetUser retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetUser(ctx context.Context, id string) (*User, error)

	// SaveUser persists a user record.
	SaveUser(ctx context.Context, u *User) error

	// UpdateUserCredits sets a user's credit balance.
	UpdateUserCredits(ctx context.Context, id string, balance int) error
}
