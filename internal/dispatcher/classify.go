package dispatcher

import (
	"strings"
	"time"

	"github.com/chesschain/queue-api/internal/models"
)

// Class buckets upstream error messages into retry/suppression policies.
// All string matching lives here; worker code consults the classifier
// instead of re-matching.
type Class int

const (
	// ClassTransient is anything unrecognized: retried and surfaced after
	// the cap.
	ClassTransient Class = iota
	// ClassVersionMismatch is a stale shared-object reference. Retried with
	// kind-sensitive backoff, never surfaced to the user.
	ClassVersionMismatch
	// ClassDuplicate is a chain-reported duplicate mint. Never surfaced.
	ClassDuplicate
	// ClassAuthorization is a badge mint refused because the sponsor is not
	// the authorized minter.
	ClassAuthorization
)

var versionMismatchMarkers = []string{
	"is not available for consumption",
	"current version",
	"non-retriable",
}

var duplicateMarkers = []string{
	"already exists",
	"already minted",
	"duplicate",
	"already locked",
}

// Classify buckets an error by its message.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}
	msg := strings.ToLower(err.Error())

	for _, marker := range versionMismatchMarkers {
		if strings.Contains(msg, marker) {
			return ClassVersionMismatch
		}
	}
	for _, marker := range duplicateMarkers {
		if strings.Contains(msg, marker) {
			return ClassDuplicate
		}
	}
	// badge::mint_badge aborts with code 1 when the caller is not the
	// authorized minter.
	if strings.Contains(err.Error(), "MoveAbort") && strings.Contains(msg, ", 1)") {
		return ClassAuthorization
	}
	return ClassTransient
}

// Suppressed reports whether a final failure must not be surfaced to the
// user. Version mismatches are always quiet; duplicate errors are quiet for
// badge mints, where the reward already exists on chain.
func Suppressed(kind models.IntentKind, err error) bool {
	switch Classify(err) {
	case ClassVersionMismatch:
		return true
	case ClassDuplicate:
		return kind == models.KindMintBadge
	}
	return false
}

// Shorter base for badge mints racing on the shared registry object.
const versionMismatchMintBase = 2 * time.Second

// RetryBackoff returns the sleep before the next attempt: linear in the
// attempt count, with a reduced base for MintBadge version mismatches.
func RetryBackoff(kind models.IntentKind, err error, attempt int, base time.Duration) time.Duration {
	if Classify(err) == ClassVersionMismatch && kind == models.KindMintBadge {
		base = versionMismatchMintBase
	}
	return base * time.Duration(attempt)
}
