package integrity

import "github.com/Ramsey-B/clover/pkg/models"

// SealedBundle is an immutable snapshot of a value bundle plus its checksum.
// The fields are unexported and only copies escape, so a sealed bundle
// cannot be mutated after construction and is safe to share across
// goroutines. The zero SealedBundle has no checksum and never verifies.
type SealedBundle struct {
	bundle   models.ValueBundle
	checksum string
}

// Seal constructs a sealed bundle, computing the checksum from the bundle's
// current field values.
func Seal(b models.ValueBundle) SealedBundle {
	return SealedBundle{
		bundle:   b,
		checksum: Checksum(b),
	}
}

// Restore rehydrates a sealed bundle from storage with its persisted
// checksum. No verification happens here; a tampered row surfaces when the
// bundle is verified or released.
func Restore(b models.ValueBundle, checksum string) SealedBundle {
	return SealedBundle{
		bundle:   b,
		checksum: checksum,
	}
}

// Bundle returns a copy of the sealed field values
func (s SealedBundle) Bundle() models.ValueBundle {
	return s.bundle
}

// Checksum returns the checksum attached at seal time
func (s SealedBundle) Checksum() string {
	return s.checksum
}

// Sealed reports whether a checksum is attached
func (s SealedBundle) Sealed() bool {
	return s.checksum != ""
}
