package identity

import (
	"math/rand"
	"strconv"
	"time"
)

const fragmentLength = 9

// NewClientID returns a random base-36 fragment followed by the current time in
// base 36. Uniqueness is probabilistic.
func NewClientID() string {
	return newClientID(time.Now(), rand.Uint64())
}

func newClientID(now time.Time, r uint64) string {
	fragment := strconv.FormatUint(r, 36)
	for len(fragment) < fragmentLength {
		fragment = "0" + fragment
	}
	return fragment[:fragmentLength] + strconv.FormatInt(now.UnixMilli(), 36)
}
