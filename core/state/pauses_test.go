package state

import "testing"

func TestPauseSetMatchesCaseInsensitively(t *testing.T) {
	set := NewPauseSet([]string{" Vault ", ""})
	if !set.IsPaused("vault") {
		t.Fatalf("expected vault to be paused")
	}
	if !set.IsPaused("VAULT") {
		t.Fatalf("expected match to ignore case")
	}
	if set.IsPaused("bridge") {
		t.Fatalf("expected bridge to be running")
	}
}

func TestNilPauseSet(t *testing.T) {
	var set PauseSet
	if set.IsPaused("vault") {
		t.Fatalf("nil set must pause nothing")
	}
}
