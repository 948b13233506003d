package records

import (
	"strings"
	"testing"
)

func sampleBadge() BadgeData {
	return BadgeData{
		EID:      "jd1234",
		Name:     "John Doe",
		Phone:    "(512) 555-0100",
		Email:    "john@x.com",
		Basket:   "42",
		Assigned: "2024-03-01",
	}
}

func TestCanonicalFieldOrder(t *testing.T) {
	raw, err := sampleBadge().Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	want := `{"eid":"jd1234","name":"John Doe","phone":"(512) 555-0100","email":"john@x.com","basket":"42","assigned":"2024-03-01"}`
	if string(raw) != want {
		t.Fatalf("unexpected canonical json\n got: %s\nwant: %s", raw, want)
	}
}

func TestCanonicalIgnoresExistingHash(t *testing.T) {
	withHash := sampleBadge()
	withHash.Hash = "SOMETHING"
	a, _ := withHash.Canonical()
	b, _ := sampleBadge().Canonical()
	if string(a) != string(b) {
		t.Fatalf("hash field leaked into canonical form: %s", a)
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	first, err := sampleBadge().ComputeHash()
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	second, _ := sampleBadge().ComputeHash()
	if first != second {
		t.Fatalf("hash not deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 || strings.ToUpper(first) != first {
		t.Fatalf("expected 64 uppercase hex chars, got %q", first)
	}

	mutations := []func(*BadgeData){
		func(d *BadgeData) { d.EID = "jd1235" },
		func(d *BadgeData) { d.Name = "John Dough" },
		func(d *BadgeData) { d.Phone = "(512) 555-0101" },
		func(d *BadgeData) { d.Email = "john@y.com" },
		func(d *BadgeData) { d.Basket = "43" },
		func(d *BadgeData) { d.Assigned = "2024-03-02" },
	}
	for i, mutate := range mutations {
		changed := sampleBadge()
		mutate(&changed)
		hash, _ := changed.ComputeHash()
		if hash == first {
			t.Fatalf("mutation %d did not change the hash", i)
		}
	}
}

func TestPayloadRoundTripsThroughParse(t *testing.T) {
	payload, err := sampleBadge().Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if !strings.Contains(payload, `"hash":"`) {
		t.Fatalf("payload should embed hash: %s", payload)
	}
	parsed, err := ParsePayload([]byte(payload))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	recomputed, _ := parsed.ComputeHash()
	if parsed.Hash != recomputed {
		t.Fatalf("embedded hash %s does not match recomputed %s", parsed.Hash, recomputed)
	}
}

func TestCanonicalDoesNotEscapeHTML(t *testing.T) {
	d := sampleBadge()
	d.Name = "Tom & Jerry <Lab>"
	raw, _ := d.Canonical()
	if !strings.Contains(string(raw), "Tom & Jerry <Lab>") {
		t.Fatalf("expected raw characters, got %s", raw)
	}
}
