// Package selector draws outcomes: weighted prize pools, reel symbols and
// match rules, and fixed-probability tables. It has no storage dependencies.
package selector

import (
	"crypto/rand"
	"math/big"

	"github.com/mroshb/reward_engine/pkg/errors"
)

// Source yields uniform integers in [0, n).
type Source interface {
	Int63n(n int64) (int64, error)
}

// CryptoSource draws from crypto/rand. It is safe for concurrent use.
type CryptoSource struct{}

func (CryptoSource) Int63n(n int64) (int64, error) {
	if n <= 0 {
		return 0, errors.New(errors.ErrCodeValidation, "random range must be positive")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "random source failed")
	}
	return v.Int64(), nil
}
