// Package idgen derives instance and review ids per spec.md §6, using the
// same crypto/rand-backed approach as the teacher's rpi.GenerateRunID, with
// a deterministic fallback so callers never receive an error from id
// generation.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// randomBase36 returns an n-character random string drawn from [0-9a-z].
func randomBase36(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// Deterministic fallback mirrors the teacher's GenerateRunID
			// fallback to a time-derived value when crypto/rand fails.
			sb.WriteByte(base36Alphabet[time.Now().UnixNano()%int64(len(base36Alphabet))])
			continue
		}
		sb.WriteByte(base36Alphabet[idx.Int64()])
	}
	return sb.String()
}

// Instance derives an instance id: work-{issue_number|"custom"}-{unix_millis}-{random_9_char_base36}.
// issueNumber of 0 or negative is rendered as "custom".
func Instance(issueNumber int, now time.Time) string {
	label := "custom"
	if issueNumber > 0 {
		label = fmt.Sprintf("%d", issueNumber)
	}
	return fmt.Sprintf("work-%s-%d-%s", label, now.UnixMilli(), randomBase36(9))
}

// Review derives a review-instance id: review-{parent_id}-{n}, where n is
// the 1-based review iteration.
func Review(parentID string, n int) string {
	return fmt.Sprintf("review-%s-%d", parentID, n)
}
