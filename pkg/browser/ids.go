package browser

import (
	"github.com/oklog/ulid/v2"
)

const sessionIDPrefix = "sess_"

// newSessionID returns "sess_" followed by a ULID. The ULID leads with the
// millisecond timestamp and uses monotonic entropy, so ids generated in the
// same millisecond still differ and sort in creation order.
func newSessionID() string {
	return sessionIDPrefix + ulid.Make().String()
}
