package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// codeAlphabet excludes ambiguous characters (0/O, 1/I/L) so invitation
// codes stay readable when printed or typed at the front desk.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateID returns a random UUID for entity primary keys.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateInvitationCode returns a human-readable code for walk-in guests,
// e.g. "G-7KQ2M9". Uniqueness per account is enforced by the database index;
// callers retry on conflict.
func GenerateInvitationCode() string {
	buf := make([]byte, 6)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			// crypto/rand should not fail; fall back to a timestamp code.
			return fmt.Sprintf("G-%d", time.Now().UnixNano()%1000000)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return "G-" + string(buf)
}
