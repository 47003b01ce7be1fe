// internal/domain/prayer/fetcher.go
package prayer

import (
	"context"
	"fmt"
	"time"
)

var ErrNetwork = fmt.Errorf("prayer times service unreachable")
var ErrParse = fmt.Errorf("prayer times response malformed")

// Fetcher loads the prayer timings of a location on a calendar day.
// Failures wrap ErrNetwork or ErrParse.
type Fetcher interface {
	FetchTimings(ctx context.Context, loc Location, date time.Time) (*DayTimings, error)
}
