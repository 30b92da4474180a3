package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewTask returns a task identifier with a recognizable prefix.
func NewTask() string {
	return "task_" + strings.ToLower(New())
}

// NewAPIKey returns an API key string. The ULID core keeps keys sortable by
// creation time in storage listings.
func NewAPIKey() string {
	return "key_" + strings.ToLower(New())
}
