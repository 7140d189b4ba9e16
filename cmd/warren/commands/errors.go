package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/session"
	"github.com/dyluth/warren/pkg/qd"
	"github.com/dyluth/warren/pkg/store"
)

// sessionError turns the session error taxonomy into operator guidance.
func sessionError(sessionID string, err error) error {
	switch {
	case errors.Is(err, store.ErrSessionLocked):
		return printer.Error(
			fmt.Sprintf("session '%s' is busy", sessionID),
			"Another request holds the session lock.",
			[]string{"Wait for it to finish and retry. Stale locks expire after redis.lock_ttl."},
		)
	case errors.Is(err, qd.ErrConfiguration):
		return printer.Error("configuration error", err.Error(), []string{
			"Check warren.yml and the run flags",
			"Export the model credential (default OPENAI_API_KEY) or pass --api-key",
		})
	case errors.Is(err, session.ErrInvalidArgument), errors.Is(err, qd.ErrPrecondition):
		return printer.Error("invalid request", err.Error(), nil)
	case errors.Is(err, qd.ErrPersistence):
		return printer.Error("persistence error", err.Error(), []string{"Save a checkpoint first:\n  warren save <session>"})
	default:
		return err
	}
}
