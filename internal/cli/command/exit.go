package command

import (
	"context"
	"errors"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
)

// Exit statuses of ncasign.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitUsage            = 2
	ExitAgentUnavailable = 3
	ExitSignTimeout      = 4
	ExitAgentRejected    = 5
)

// ExitCode maps a command error to the process exit status, so scripts
// can tell a missing agent from a declined signature.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, domain.ErrSignTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ExitSignTimeout
	}

	switch domain.ErrorCategory(err) {
	case domain.CategoryArgument:
		return ExitUsage
	case domain.CategoryConnection:
		return ExitAgentUnavailable
	case domain.CategoryAgent:
		return ExitAgentRejected
	}
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return ExitAgentUnavailable
	}
	return ExitFailure
}
