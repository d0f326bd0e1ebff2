// Package integrity seals value bundles against tampering and enforces
// checksum verification when they are served.
package integrity

import (
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Checksum computes the tamper-evidence token for a value bundle: a 32-bit
// multiply-and-add rolling hash over the UTF-8 bytes of the pipe-joined
// field string, rendered in base 36. Every field rendering below is part of
// the token's stability contract; changing any of them invalidates all
// stored checksums.
func Checksum(b models.ValueBundle) string {
	joined := strings.Join([]string{
		b.PlayerID,
		strconv.FormatFloat(b.Value, 'f', -1, 64),
		strconv.Itoa(b.Tier),
		strconv.Itoa(b.OverallRank),
		strconv.Itoa(b.PositionRank),
		strconv.FormatInt(b.ValueEpoch, 10),
		b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, "|")

	var h uint32
	for _, c := range []byte(joined) {
		h = h*31 + uint32(c)
	}

	return strconv.FormatUint(uint64(h), 36)
}
