// Package idgen generates the two identifier shapes the data model needs:
// canonical UUID text for issues (spec.md §3 "128-bit UUID rendered as
// text"), and a lexicographically sortable identifier for leases (spec.md
// §9 open question, resolved here in favor of a ULID-style id — see
// DESIGN.md). The random suffix is generated the way the teacher's
// internal/audit/audit.go newID() draws randomness (crypto/rand), scaled up
// from 4 bytes to ULID's 10 bytes of entropy.
package idgen

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Issue generates a new canonical issue ID.
func Issue() string {
	return uuid.NewString()
}

// GateRun generates a new gate-run ID.
func GateRun() string {
	return uuid.NewString()
}

// crockford is the Crockford base32 alphabet ULID uses: no I, L, O, U, to
// avoid transcription ambiguity.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Lease generates a ULID-style lease ID: a 48-bit millisecond timestamp
// followed by 80 bits of randomness, both Crockford-base32 encoded, so that
// two leases generated in the same process (or across processes with
// synchronized clocks) maintain creation order under plain string
// comparison (spec.md: "lease-id (monotonically sortable identifier)").
func Lease() string {
	return LeaseAt(time.Now())
}

// LeaseAt is Lease with an injectable timestamp, for deterministic tests.
func LeaseAt(t time.Time) string {
	ms := uint64(t.UnixMilli())

	var raw [16]byte // ULID layout: 6 bytes timestamp + 10 bytes randomness
	raw[0] = byte(ms >> 40)
	raw[1] = byte(ms >> 32)
	raw[2] = byte(ms >> 24)
	raw[3] = byte(ms >> 16)
	raw[4] = byte(ms >> 8)
	raw[5] = byte(ms)
	if _, err := rand.Read(raw[6:]); err != nil {
		// crypto/rand failing is a platform-level invariant violation, not
		// a recoverable error condition.
		panic(fmt.Sprintf("idgen: crypto/rand unavailable: %v", err))
	}

	return string(encodeCrockford(raw))
}

// encodeCrockford renders 16 bytes (128 bits) as 26 Crockford base32
// characters, matching ULID's canonical textual encoding: the 128 raw bits
// are treated as the tail of a 130-bit stream with 2 leading zero bits,
// then sliced into 26 groups of 5 bits each, most significant first.
func encodeCrockford(raw [16]byte) []byte {
	bitAt := func(streamIdx int) byte {
		if streamIdx < 2 {
			return 0
		}
		bitIdx := streamIdx - 2
		b := raw[bitIdx/8]
		shift := 7 - uint(bitIdx%8)
		return (b >> shift) & 1
	}

	out := make([]byte, 26)
	for i := 0; i < 26; i++ {
		var v byte
		for b := 0; b < 5; b++ {
			v = (v << 1) | bitAt(i*5+b)
		}
		out[i] = crockford[v]
	}
	return out
}
