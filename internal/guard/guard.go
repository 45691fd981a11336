// Package guard implements the admission pre-check applied before any
// mutation command reaches the core. On rejection the core is never
// entered.
package guard

import (
	"context"
	"errors"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Guard throttles how often an actor may invoke a mutation operation.
type Guard interface {
	Allow(ctx context.Context, actorID, op string) error
}
