package store

import (
	"strings"
	"testing"
)

func TestParseSeed(t *testing.T) {
	doc := []byte(`
campuses:
  - name: indian institute of technology bombay
    domains: [IITB.ac.in, "@ee.iitb.ac.in"]
  - name: BITS Pilani
    id: bits
    domains: [pilani.bits-pilani.ac.in]
`)
	rows, err := ParseSeed(doc)
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3", len(rows))
	}

	first := rows[0]
	if first.Domain != "iitb.ac.in" {
		t.Errorf("domain: got %s, want iitb.ac.in", first.Domain)
	}
	if first.CampusName != "Indian Institute Of Technology Bombay" {
		t.Errorf("campus name: got %q", first.CampusName)
	}
	if first.CampusID != "indian-institute-of-technology-bombay" {
		t.Errorf("campus id: got %q", first.CampusID)
	}
	if rows[1].Domain != "ee.iitb.ac.in" || rows[1].CampusID != first.CampusID {
		t.Errorf("second domain: got %+v", rows[1])
	}
	if rows[2].CampusID != "bits" || rows[2].CampusName != "BITS Pilani" {
		t.Errorf("explicit id/name: got %+v", rows[2])
	}
}

func TestParseSeedRejects(t *testing.T) {
	cases := map[string]string{
		"missing name":   "campuses:\n  - domains: [a.edu]\n",
		"no domains":     "campuses:\n  - name: A\n",
		"bad domain":     "campuses:\n  - name: A\n    domains: [not-a-domain]\n",
		"shared domain":  "campuses:\n  - name: A\n    domains: [x.edu]\n  - name: B\n    domains: [x.edu]\n",
		"malformed yaml": "campuses: [",
	}
	for name, doc := range cases {
		if _, err := ParseSeed([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseSeedDuplicateWithinCampus(t *testing.T) {
	rows, err := ParseSeed([]byte("campuses:\n  - name: A\n    domains: [x.edu, X.EDU]\n"))
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows: got %d, want 1", len(rows))
	}
	if !strings.EqualFold(rows[0].CampusName, "a") {
		t.Errorf("name: got %q", rows[0].CampusName)
	}
}
