package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValidationError rejects malformed input before it reaches storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Field + ": " + e.Reason
}

// MissingDataError means a required upstream record does not exist,
// as opposed to existing in a bad state.
type MissingDataError struct {
	Symbol string
	Date   time.Time
	What   string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing data: %s for %s on %s", e.What, e.Symbol, e.Date.Format("2006-01-02"))
}

// InsufficientCashError rejects a buy the ledger cannot fund.
type InsufficientCashError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("insufficient cash: need %s, have %s", e.Required.StringFixed(2), e.Available.StringFixed(2))
}

// InsufficientPositionError rejects a sell larger than the holding.
type InsufficientPositionError struct {
	Symbol string
	Want   int64
	Have   int64
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("insufficient position: %s want %d, have %d", e.Symbol, e.Want, e.Have)
}

// TimeoutError marks a stage that ran out of time. It unwraps to
// context.DeadlineExceeded so callers can match either way.
type TimeoutError struct {
	Stage   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: stage %s exceeded %s", e.Stage, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// ConsistencyError means the ledger identity cash + positions ==
// total no longer holds. The symbol is halted until an operator
// intervenes; this error is never retried.
type ConsistencyError struct {
	Symbol         string
	Cash           decimal.Decimal
	PositionsValue decimal.Decimal
	TotalValue     decimal.Decimal
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency: %s cash %s + positions %s != total %s",
		e.Symbol, e.Cash.StringFixed(4), e.PositionsValue.StringFixed(4), e.TotalValue.StringFixed(4))
}
