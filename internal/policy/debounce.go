package policy

import (
	"math"
	"time"

	"github.com/aonescu/kubespresso/internal/annotations"
	"github.com/aonescu/kubespresso/internal/types"
)

// NeverActed is the elapsed time reported for a resource without a usable
// marker. It is larger than any cooldown.
const NeverActed int64 = math.MaxInt64

// SecondsSinceMarker returns how many seconds passed between the LastCoffee
// marker and now. A missing or unparsable marker yields NeverActed. The
// result is negative when the marker lies in the future.
func SecondsSinceMarker(res types.Resource, now time.Time) int64 {
	marker, ok := annotations.ParseInt64(res.Annotations, annotations.LastCoffee)
	if !ok {
		return NeverActed
	}
	nowSec := now.Unix()
	// marker far in the past would overflow the subtraction
	if marker < 0 && nowSec > math.MaxInt64+marker {
		return NeverActed
	}
	return nowSec - marker
}
