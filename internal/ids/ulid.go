// Package ids generates identifiers for published envelopes and stream
// subscribers.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// CreateSubscriberID returns a hub subscriber identity scoped by a short
// prefix, e.g. "sse-01J9...". The prefix keeps ids readable in logs when
// several stream kinds share a process.
func CreateSubscriberID(prefix string) string {
	if prefix == "" {
		return CreateULID()
	}
	return prefix + "-" + CreateULID()
}
