// Package refcode generates the human-readable reference numbers stamped on
// bookings, orders and payments: prefix + YYYYMMDD + HHMMSS + 8 uppercase
// characters of randomness, so two records created in the same second still
// cannot collide.
package refcode

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const suffixLen = 8

func New(prefix string, t time.Time) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	suffix := strings.ToUpper(raw[:suffixLen])
	return prefix + t.Format("20060102") + t.Format("150405") + suffix
}
