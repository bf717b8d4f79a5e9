package generate

import (
	"errors"
	"fmt"
	"time"
)

// Terminal gating outcomes. These never reach the external call and never
// leave a partial debit behind.
var (
	// ErrInsufficientCredits denies a new generation with an empty balance.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrRedoExhausted denies a redo whose counter is spent or expired.
	ErrRedoExhausted = errors.New("redo budget exhausted")
)

// RateLimitedError denies a request over the fixed-window limit. ResetIn tells
// the client when the window rolls over.
type RateLimitedError struct {
	ResetIn time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %ds", int(e.ResetIn.Seconds()))
}

// InvalidInputError rejects malformed request input.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// GenerationFailedError wraps an external-call failure after gating. Message
// carries whatever explanation the provider returned, already stripped of
// internal detail.
type GenerationFailedError struct {
	Message string
}

func (e *GenerationFailedError) Error() string {
	if e.Message == "" {
		return "image generation failed"
	}
	return "image generation failed: " + e.Message
}
