package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Meta is the cache entry metadata record of §3/§6, stored alongside an
// object as meta/<fingerprint>.json on the local tier and <key>/meta on the
// remote tier.
type Meta struct {
	Fingerprint     string `json:"fingerprint"`
	TaskKind        string `json:"task-kind"`
	CreatedAt       string `json:"created-at"` // RFC 3339
	DurationMS      int64  `json:"duration-ms"`
	SizeBytes       int64  `json:"size-bytes"`
	ProducerVersion string `json:"producer-version"`

	// ContentSHA256 is the object's own content hash, recorded at write time
	// so a later reader can verify integrity without re-deriving the
	// fingerprint (which hashes task inputs, not the object bytes).
	ContentSHA256 string `json:"content-sha256"`
}

// NewMeta builds the Meta record for an object freshly produced by a driver
// invocation, stamping createdAt from now and the content hash from object.
func NewMeta(fingerprint, taskKind string, duration time.Duration, object []byte, producerVersion string) Meta {
	return Meta{
		Fingerprint:     fingerprint,
		TaskKind:        taskKind,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		DurationMS:      duration.Milliseconds(),
		SizeBytes:       int64(len(object)),
		ProducerVersion: producerVersion,
		ContentSHA256:   contentHash(object),
	}
}

// Encode marshals m to its stored JSON form.
func (m Meta) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMeta parses a stored meta blob.
func DecodeMeta(data []byte) (Meta, error) {
	var m Meta
	err := json.Unmarshal(data, &m)
	return m, err
}

func contentHash(object []byte) string {
	sum := sha256.Sum256(object)
	return hex.EncodeToString(sum[:])
}
