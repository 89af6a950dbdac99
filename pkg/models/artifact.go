package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// EnvelopeVersion is the current artifact envelope schema version.
const EnvelopeVersion = 1

// Envelope wraps a step payload with the metadata needed for staleness
// detection and provenance. Envelopes are immutable once written; a revision
// produces a new envelope and snapshots the old one.
type Envelope struct {
	Version      int             `json:"version"`
	Step         int             `json:"step"`
	UpstreamHash string          `json:"upstream_hash"`
	ContentHash  string          `json:"content_hash"`
	Model        string          `json:"model"`
	GeneratedAt  time.Time       `json:"generated_at"`
	Degraded     bool            `json:"degraded"`
	Attempts     int             `json:"attempts"`
	Payload      json.RawMessage `json:"payload"`
}

// HashContent returns the hex SHA-256 of a serialized payload.
func HashContent(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// UpstreamHash fingerprints the inputs a step was generated from: the step's
// prompt version concatenated with the sorted content hashes of its parent
// artifacts. Deterministic regardless of parent ordering.
func UpstreamHash(promptVersion string, parentHashes []string) string {
	sorted := slices.Clone(parentHashes)
	slices.Sort(sorted)
	sum := sha256.Sum256([]byte(promptVersion + "|" + strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:])
}
