// Package ownership gates mutations on the stored owner.
package ownership

import (
	"errors"

	"github.com/okian/scorekeeper/internal/domain/address"
)

// ErrUnauthorized is returned when the caller is not the stored owner.
var ErrUnauthorized = errors.New("unauthorized")

// Authorize succeeds only when caller is owner. It has no side effects.
func Authorize(caller, owner address.Addr) error {
	if caller != owner {
		return ErrUnauthorized
	}
	return nil
}
