package model

import "time"

// MonthKeyLayout formats calendar-month keys ("2026-03").
const MonthKeyLayout = "2006-01"

// MonthKey returns the UTC calendar-month key for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthKeyLayout)
}

// BudgetState is the persisted part of a provider's rate budget.
type BudgetState struct {
	Provider   string    `json:"provider"`
	MonthKey   string    `json:"month_key"`
	Calls      int       `json:"calls"`
	LastCallAt time.Time `json:"last_call_at"`
}

// Valid reports whether the state can be trusted after a reload.
func (s BudgetState) Valid() bool {
	if s.Provider == "" || s.Calls < 0 {
		return false
	}
	_, err := time.Parse(MonthKeyLayout, s.MonthKey)
	return err == nil
}

// RateBudget is a provider's live budget as seen by the guard.
type RateBudget struct {
	Provider     string        `json:"provider"`
	MonthKey     string        `json:"month_key"`
	Calls        int           `json:"calls_this_month"`
	MonthlyLimit int           `json:"monthly_limit"`
	MinInterval  time.Duration `json:"min_interval"`
	LastCallAt   time.Time     `json:"last_call_at"`
}

// Remaining is the calls left this month; -1 when unlimited.
func (b RateBudget) Remaining() int {
	if b.MonthlyLimit <= 0 {
		return -1
	}
	if n := b.MonthlyLimit - b.Calls; n > 0 {
		return n
	}
	return 0
}
