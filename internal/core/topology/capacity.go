package topology

import (
	"github.com/stratahq/strata/internal/common/errorx"
)

// CheckCapacity is the single authority for the licensed-capacity
// invariant: after the operation, active + delta must not exceed the
// licensed unit count. It is pure; both generation and every mutation
// that re-includes units call through it rather than re-implementing
// the check.
func CheckCapacity(active, delta, licensed int) error {
	if delta <= 0 {
		return nil
	}
	if excess := active + delta - licensed; excess > 0 {
		return errorx.CapacityExceeded(excess)
	}
	return nil
}
