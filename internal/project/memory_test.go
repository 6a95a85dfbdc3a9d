package project

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p := New("user-1")
	p.Description = "product on a beach"

	if err := repo.CreateProject(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected ID %q, got %q", p.ID, got.ID)
	}
	if got.Description != "product on a beach" {
		t.Errorf("expected description to round-trip, got %q", got.Description)
	}

	// The returned project is a clone; mutating it must not leak back.
	got.Description = "changed"
	again, _ := repo.GetProject(ctx, p.ID)
	if again.Description != "product on a beach" {
		t.Error("mutation of returned clone leaked into repository")
	}
}

func TestMemoryRepository_GetProject_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.GetProject(context.Background(), "prj-missing")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestMemoryRepository_UpdateProject(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p := New("user-1")
	if err := repo.CreateProject(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := StatusProcessing
	progress := 10
	err := repo.UpdateProject(ctx, p.ID, Update{Status: &status, Progress: &progress})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := repo.GetProject(ctx, p.ID)
	if got.Status != StatusProcessing {
		t.Errorf("expected processing, got %q", got.Status)
	}
	if got.Progress != 10 {
		t.Errorf("expected progress 10, got %d", got.Progress)
	}

	// Untouched fields survive partial updates.
	if got.UserID != "user-1" {
		t.Errorf("partial update clobbered UserID: %q", got.UserID)
	}
}

func TestMemoryRepository_UpdateProject_InvalidTransition(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p := New("user-1")
	_ = repo.CreateProject(ctx, p)

	status := StatusGeneratingVideo
	err := repo.UpdateProject(ctx, p.ID, Update{Status: &status})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMemoryRepository_ClaimRun(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p := New("user-1")
	_ = repo.CreateProject(ctx, p)

	if err := repo.ClaimRun(ctx, p.ID, "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.ClaimRun(ctx, p.ID, "run-2"); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}

	got, _ := repo.GetProject(ctx, p.ID)
	if got.RunID != "run-1" {
		t.Errorf("expected RunID 'run-1', got %q", got.RunID)
	}
}

func TestMemoryRepository_ClaimRun_ExactlyOneWinner(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p := New("user-1")
	_ = repo.CreateProject(ctx, p)

	const claimers = 10
	var wg sync.WaitGroup
	wins := make(chan int, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := repo.ClaimRun(ctx, p.ID, "run"); err == nil {
				wins <- n
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly one successful claim, got %d", count)
	}
}

func TestMemoryRepository_Users(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	u := &User{ID: "user-1", CreditBalance: 20}
	if err := repo.SaveUser(ctx, u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CreditBalance != 20 {
		t.Errorf("expected balance 20, got %d", got.CreditBalance)
	}

	if err := repo.UpdateUserCredits(ctx, "user-1", 15); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = repo.GetUser(ctx, "user-1")
	if got.CreditBalance != 15 {
		t.Errorf("expected balance 15, got %d", got.CreditBalance)
	}

	if _, err := repo.GetUser(ctx, "user-missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := repo.UpdateUserCredits(ctx, "user-missing", 1); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
