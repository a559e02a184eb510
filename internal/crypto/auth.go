package crypto

import (
	"fmt"

	"github.com/dchest/siphash"
)

// JoinToken computes the Mles join authenticator: SipHash-2-4 with a zero key
// over uid || channel || serverKey, as 16 hex digits.
func JoinToken(uid, channel string, serverKey []byte) string {
	b := make([]byte, 0, len(uid)+len(channel)+len(serverKey))
	b = append(b, uid...)
	b = append(b, channel...)
	b = append(b, serverKey...)
	return fmt.Sprintf("%016x", siphash.Hash(0, 0, b))
}
