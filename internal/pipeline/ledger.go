package pipeline

import "sync"

// Ledger accumulates metered cost for one pipeline run. Charges are
// attempt-based: every adapter invocation charges its nominal cost whether
// or not the call succeeds, because the remote provider bills on attempt.
// The accumulated total is written to the project exactly once, at the
// run's terminal transition.
type Ledger struct {
	mu      sync.Mutex
	pricing Pricing
	total   int64
	byStage map[Stage]int64
}

// NewLedger creates a ledger backed by the given pricing table.
func NewLedger(pricing Pricing) *Ledger {
	return &Ledger{
		pricing: pricing,
		byStage: make(map[Stage]int64),
	}
}

// Charge accumulates the table price of one attempt of the given stage.
func (l *Ledger) Charge(stage Stage) {
	l.ChargeAmount(stage, l.pricing.Cost(stage))
}

// ChargeAmount accumulates an explicit amount for the given stage, used for
// duration-scaled charges.
func (l *Ledger) ChargeAmount(stage Stage, amountMillicents int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total += amountMillicents
	l.byStage[stage] += amountMillicents
}

// Total returns the accumulated cost in millicents.
func (l *Ledger) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// StageTotal returns the accumulated cost of a single stage.
func (l *Ledger) StageTotal(stage Stage) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byStage[stage]
}
