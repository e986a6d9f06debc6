package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time, which keeps
// request ids and archived receipt keys in issue order.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
