package registry

import (
	"testing"
)

// sampleRecord returns a valid, fully populated record.
func sampleRecord() *AgentRecord {
	return &AgentRecord{
		ID:        "agent-1",
		ChainID:   "ethereum",
		UpdatedAt: "1700000000",
		Profile: &AgentProfile{
			Name:        "Atlas",
			Description: "Route planning agent",
			Endpoint:    "https://atlas.example.com/a2a",
			Owner:       "0xAbCd",
			Skills:      []string{"routing", "geocoding"},
			Protocols:   []string{"a2a", "routing"},
			Tags:        []string{"maps"},
			AvatarURL:   "https://atlas.example.com/avatar.png",
		},
	}
}

func TestNormalizeTombstone(t *testing.T) {
	rec := sampleRecord()
	rec.Profile = nil

	canon, ok := Normalize(rec)
	if ok {
		t.Fatal("expected tombstone, got canonical record")
	}
	if canon != nil {
		t.Fatalf("expected nil canonical record, got %+v", canon)
	}
}

func TestNormalizeNeutralDefaults(t *testing.T) {
	rec := &AgentRecord{
		ID:        "agent-2",
		ChainID:   "base",
		UpdatedAt: "5",
		Profile:   &AgentProfile{},
	}

	canon, ok := Normalize(rec)
	if !ok {
		t.Fatal("expected canonical record for live profile")
	}
	if canon.Capabilities == nil || canon.Tags == nil {
		t.Error("slice fields must be non-nil after normalization")
	}
	if len(canon.Capabilities) != 0 || len(canon.Tags) != 0 {
		t.Errorf("expected empty slices, got caps=%v tags=%v", canon.Capabilities, canon.Tags)
	}
}

func TestNormalizeMergesCapabilities(t *testing.T) {
	canon, _ := Normalize(sampleRecord())

	want := []string{"a2a", "geocoding", "routing"}
	if len(canon.Capabilities) != len(want) {
		t.Fatalf("expected %v, got %v", want, canon.Capabilities)
	}
	for i, v := range want {
		if canon.Capabilities[i] != v {
			t.Errorf("capabilities[%d]: expected %q, got %q", i, v, canon.Capabilities[i])
		}
	}
}

func TestNormalizeLowercasesOwner(t *testing.T) {
	canon, _ := Normalize(sampleRecord())
	if canon.Owner != "0xabcd" {
		t.Errorf("expected lowercased owner, got %q", canon.Owner)
	}
}

func TestFingerprintStableAcrossSourceOrder(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	// Same sets, different source-side ordering.
	b.Profile.Skills = []string{"geocoding", "routing"}
	b.Profile.Protocols = []string{"routing", "a2a"}

	ca, _ := Normalize(a)
	cb, _ := Normalize(b)

	fa, err := Fingerprint(ca)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	fb, err := Fingerprint(cb)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	if fa != fb {
		t.Errorf("fingerprints differ for structurally equal records: %s vs %s", fa, fb)
	}
}

func TestFingerprintIgnoresNonCanonicalFields(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	b.Profile.AvatarURL = "https://elsewhere.example.com/new.png"
	b.UpdatedAt = "1700009999"

	ca, _ := Normalize(a)
	cb, _ := Normalize(b)

	fa, _ := Fingerprint(ca)
	fb, _ := Fingerprint(cb)
	if fa != fb {
		t.Error("changing non-canonical fields must not change the fingerprint")
	}
}

func TestFingerprintDetectsCanonicalChange(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	b.Profile.Description = "Route planning and logistics agent"

	ca, _ := Normalize(a)
	cb, _ := Normalize(b)

	fa, _ := Fingerprint(ca)
	fb, _ := Fingerprint(cb)
	if fa == fb {
		t.Error("canonical field change must change the fingerprint")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AgentRecord)
		wantErr bool
	}{
		{"valid", func(r *AgentRecord) {}, false},
		{"missing id", func(r *AgentRecord) { r.ID = "" }, true},
		{"missing chain", func(r *AgentRecord) { r.ChainID = "" }, true},
		{"missing watermark", func(r *AgentRecord) { r.UpdatedAt = "" }, true},
		{"garbage watermark", func(r *AgentRecord) { r.UpdatedAt = "not-a-number" }, true},
		{"tombstone is valid", func(r *AgentRecord) { r.Profile = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord()
			tt.mutate(rec)
			err := rec.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWatermarkComparisonBeyondFloat53(t *testing.T) {
	// Adjacent values that collide when squeezed through float64.
	a := "9007199254740993"
	b := "9007199254740992"

	cmp, err := CompareWatermarks(a, b)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if cmp != 1 {
		t.Errorf("expected %s > %s, got cmp=%d", a, b, cmp)
	}

	max, err := MaxWatermark(b, a)
	if err != nil {
		t.Fatalf("max failed: %v", err)
	}
	if max != a {
		t.Errorf("expected max %s, got %s", a, max)
	}
}

func TestWatermarkEmptyIsGenesis(t *testing.T) {
	cmp, err := CompareWatermarks("", "0")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if cmp != 0 {
		t.Errorf("empty watermark should equal genesis, got cmp=%d", cmp)
	}
}
