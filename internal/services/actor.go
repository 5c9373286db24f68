package services

import (
	"github.com/mroshb/reward_engine/pkg/errors"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	AccountID uint
	IsAdmin   bool
}

func (a Actor) requireAdmin() error {
	if !a.IsAdmin {
		return errors.New(errors.ErrCodeForbidden, "admin only")
	}
	return nil
}

// maxTokenLen matches the idempotency_keys.token column.
const maxTokenLen = 64

// checkToken rejects a missing or oversized request token. Every operation
// that moves points needs one so a retry can be recognized.
func checkToken(token string) error {
	if token == "" {
		return errors.New(errors.ErrCodeValidation, "request_id is required")
	}
	if len(token) > maxTokenLen {
		return errors.New(errors.ErrCodeValidation, "request_id is too long")
	}
	return nil
}
