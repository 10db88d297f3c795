package template

import (
	"testing"

	"cvforge/internal/subscription"
)

func TestCanAccessMatrix(t *testing.T) {
	policy := NewPolicy(false, 3)

	cases := []struct {
		templateID string
		level      subscription.Level
		want       bool
	}{
		{"classic", subscription.LevelFree, true},
		{"minimal", subscription.LevelFree, true},
		{"modern", subscription.LevelFree, false},
		{"professional", subscription.LevelFree, false},
		{"classic", subscription.LevelPro, true},
		{"modern", subscription.LevelPro, true},
		{"tech", subscription.LevelPro, true},
		{"professional", subscription.LevelPro, false},
		{"elegant", subscription.LevelPro, false},
		{"professional", subscription.LevelProPlus, true},
		{"elegant", subscription.LevelProPlus, true},
		{"classic", subscription.LevelProPlus, true},
	}
	for _, tc := range cases {
		if got := policy.CanAccess(tc.templateID, tc.level); got != tc.want {
			t.Errorf("CanAccess(%q, %q) = %v, want %v", tc.templateID, tc.level, got, tc.want)
		}
	}
}

func TestCanAccessUnknownTemplate(t *testing.T) {
	policy := NewPolicy(false, 3)
	if policy.CanAccess("ghost", subscription.LevelProPlus) {
		t.Fatal("unknown template must never be accessible")
	}

	unlocked := NewPolicy(true, 3)
	if unlocked.CanAccess("ghost", subscription.LevelFree) {
		t.Fatal("unlock_all must not validate unknown template ids")
	}
}

func TestCanAccessUnlockAll(t *testing.T) {
	policy := NewPolicy(true, 3)
	for _, tmpl := range All() {
		if !policy.CanAccess(tmpl.ID, subscription.LevelFree) {
			t.Fatalf("unlock_all: %q still locked for free", tmpl.ID)
		}
	}
}

func TestCanCreateResumeQuota(t *testing.T) {
	policy := NewPolicy(false, 3)

	if !policy.CanCreateResume(subscription.LevelFree, 2) {
		t.Fatal("free user below quota should be allowed")
	}
	if policy.CanCreateResume(subscription.LevelFree, 3) {
		t.Fatal("free user at quota should be rejected")
	}
	if policy.CanCreateResume(subscription.LevelFree, 10) {
		t.Fatal("free user over quota should be rejected")
	}
	if !policy.CanCreateResume(subscription.LevelPro, 1000) {
		t.Fatal("paid tiers are not quota limited")
	}
	if !policy.CanCreateResume(subscription.LevelProPlus, 1000) {
		t.Fatal("paid tiers are not quota limited")
	}
}
