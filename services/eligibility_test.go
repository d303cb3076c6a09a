package services

import (
	"errors"
	"testing"

	"campus-referral-engine/models"
)

func testAllowList() AllowList {
	return NewAllowList([]models.AllowedDomain{
		{Domain: "campus.edu", CampusID: "c1", CampusName: "Campus One"},
		{Domain: "cs.campus.edu", CampusID: "c1", CampusName: "Campus One"},
		{Domain: "Other.EDU", CampusID: "c2", CampusName: "Campus Two"},
	})
}

func TestEmailDomain(t *testing.T) {
	cases := map[string]string{
		"a@Campus.EDU":     "campus.edu",
		"weird@x@other.io": "other.io",
		"no-at-sign":       "",
		"":                 "",
	}
	for in, want := range cases {
		if got := EmailDomain(in); got != want {
			t.Errorf("EmailDomain(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestAllowListEligibility(t *testing.T) {
	allow := testAllowList()

	if got := allow.Len(); got != 3 {
		t.Errorf("Len: got %d, want 3", got)
	}
	c, ok := allow.Eligible("x@OTHER.edu", false)
	if !ok || c.ID != "c2" {
		t.Errorf("Eligible other.edu: got %+v, %v", c, ok)
	}
	if _, ok := allow.Eligible("x@campus.edu", true); ok {
		t.Error("guest must not be eligible")
	}
	if _, ok := allow.Eligible("", false); ok {
		t.Error("empty email must not be eligible")
	}
	if _, ok := allow.Eligible("x@gmail.com", false); ok {
		t.Error("unlisted domain must not be eligible")
	}
	if got := allow.CampusDomains("c1"); len(got) != 2 || got[0] != "campus.edu" {
		t.Errorf("CampusDomains: got %v", got)
	}
	if got := allow.CampusName("c2"); got != "Campus Two" {
		t.Errorf("CampusName: got %q", got)
	}
	if got := allow.CampusName(FallbackCampus.ID); got != FallbackCampus.Name {
		t.Errorf("CampusName fallback: got %q", got)
	}
}

func TestEmptyAllowList(t *testing.T) {
	allow := NewAllowList(nil)
	if allow.Len() != 0 || len(allow.Domains()) != 0 {
		t.Error("empty allow-list should have no domains")
	}
	if _, ok := allow.Eligible("a@campus.edu", false); ok {
		t.Error("nothing is eligible against an empty allow-list")
	}
}

func TestPolicyJoinCampus(t *testing.T) {
	allow := testAllowList()
	policy := NewPolicy(0, []string{"Tester@Gmail.com"}, "campus.edu")

	if policy.Threshold != 5 {
		t.Errorf("default threshold: got %d, want 5", policy.Threshold)
	}
	c, err := policy.JoinCampus(allow, "tester@gmail.com")
	if err != nil || c.ID != "c1" {
		t.Errorf("unrestricted join: got %+v, %v", c, err)
	}
	if _, err := policy.JoinCampus(allow, "someone@gmail.com"); !errors.Is(err, ErrDomainNotAllowed) {
		t.Errorf("unlisted join: got %v, want ErrDomainNotAllowed", err)
	}

	noCampus := NewPolicy(5, []string{"tester@gmail.com"}, "")
	if c, _ := noCampus.JoinCampus(allow, "tester@gmail.com"); c != FallbackCampus {
		t.Errorf("fallback campus: got %+v", c)
	}
}

func TestPolicyReferralOwner(t *testing.T) {
	policy := NewPolicy(5, []string{"tester@gmail.com"}, "")
	ordinary := policy.ReferralOwner(models.Participant{ExternalUserID: "u1", Email: "a@Campus.edu"})
	if ordinary.Domain != "campus.edu" || ordinary.ExternalUserID != "u1" {
		t.Errorf("ordinary owner: got %+v", ordinary)
	}
	open := policy.ReferralOwner(models.Participant{ExternalUserID: "u2", Email: "tester@gmail.com"})
	if open.Domain != "" {
		t.Errorf("unrestricted owner domain: got %q, want empty", open.Domain)
	}
}
