package registry

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// Fingerprint produces a short deterministic fingerprint of a canonical
// record, used purely for change detection between sync cycles.
//
// Two structurally equal records always produce the same fingerprint
// (hashstructure is insensitive to map iteration order, and Normalize sorts
// every slice), and any canonical field change produces a different one with
// overwhelming probability. This is not a cryptographic commitment; it only
// needs to resist the normal variability of legitimate record edits.
func Fingerprint(agent *CanonicalAgent) (string, error) {
	h, err := hashstructure.Hash(agent, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash record %s: %w", agent.ID, err)
	}
	return fmt.Sprintf("%016x", h), nil
}
