package registry

import (
	"sort"
	"strings"
)

// Normalize maps a raw registry record into its canonical projection.
//
// The second return value is false when the record is tombstoned; in that
// case no canonical form exists and the caller should treat the record as a
// pending deletion.
//
// Normalization rules are fixed and pure:
//   - absent optional fields become the type's neutral value (empty string,
//     empty slice), never a nil slice, so fingerprints stay stable across
//     source-side null-vs-absent differences;
//   - Skills and Protocols merge into one deduplicated, sorted Capabilities
//     list;
//   - Tags are deduplicated and sorted;
//   - presentation-only fields (AvatarURL) are dropped.
func Normalize(rec *AgentRecord) (*CanonicalAgent, bool) {
	if rec.Tombstoned() {
		return nil, false
	}

	p := rec.Profile
	return &CanonicalAgent{
		ID:           rec.ID,
		ChainID:      rec.ChainID,
		Name:         strings.TrimSpace(p.Name),
		Description:  strings.TrimSpace(p.Description),
		Endpoint:     strings.TrimSpace(p.Endpoint),
		Owner:        strings.ToLower(strings.TrimSpace(p.Owner)),
		Capabilities: mergeSorted(p.Skills, p.Protocols),
		Tags:         mergeSorted(p.Tags, nil),
	}, true
}

// mergeSorted combines two lists into one deduplicated, sorted list.
// Empty entries are dropped. Always returns a non-nil slice.
func mergeSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			merged = append(merged, v)
		}
	}
	sort.Strings(merged)
	return merged
}
