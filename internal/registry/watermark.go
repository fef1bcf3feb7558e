package registry

import (
	"fmt"
	"math/big"
	"strings"
)

// GenesisWatermark is the lower bound passed to the query service when a
// partition has no checkpoint yet.
const GenesisWatermark = "0"

// ParseWatermark parses a decimal watermark string. Watermarks compare as
// arbitrary-precision integers: source timestamps can exceed 2^53, so they
// must never round-trip through a machine word or a float.
func ParseWatermark(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = GenesisWatermark
	}
	w, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid watermark %q", s)
	}
	return w, nil
}

// CompareWatermarks returns -1, 0 or 1 as a is less than, equal to or
// greater than b. An empty string counts as genesis.
func CompareWatermarks(a, b string) (int, error) {
	wa, err := ParseWatermark(a)
	if err != nil {
		return 0, err
	}
	wb, err := ParseWatermark(b)
	if err != nil {
		return 0, err
	}
	return wa.Cmp(wb), nil
}

// MaxWatermark returns the larger of two watermarks.
func MaxWatermark(a, b string) (string, error) {
	cmp, err := CompareWatermarks(a, b)
	if err != nil {
		return "", err
	}
	if cmp >= 0 {
		return a, nil
	}
	return b, nil
}
