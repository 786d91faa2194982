package account

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCash   = errors.New("insufficient cash")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrHoldingNotFound    = errors.New("holding not found")
	ErrInvalidAmount      = errors.New("amount must be positive")
)

// PenaltyError reports a sale that would pay the short-holding penalty.
// Repeat the sale with Force to accept it.
type PenaltyError struct {
	Code   string
	Shares float64
	Fee    float64
}

func (e *PenaltyError) Error() string {
	return fmt.Sprintf("%s: %.2f shares held under 7 days, penalty ¥%.2f; confirm with force", e.Code, e.Shares, e.Fee)
}
