package terminal

import "testing"

func TestWindowIDKnownTerminals(t *testing.T) {
	t.Setenv("KITTY_WINDOW_ID", "42")
	if got := windowID(TermKitty); got != "42" {
		t.Fatalf("windowID(kitty) = %q, want 42", got)
	}
	if got := windowID(TermGeneric); got != "" {
		t.Fatalf("windowID(generic) = %q, want empty", got)
	}
}

func TestResolveIdentityFallsBackToSessionID(t *testing.T) {
	t.Setenv("TERM_PROGRAM", "")
	t.Setenv("TERM", "xterm-256color")
	t.Setenv("KITTY_WINDOW_ID", "")
	t.Setenv("ITERM_SESSION_ID", "")
	t.Setenv("WEZTERM_PANE", "")

	id := resolveIdentity()
	if id.TerminalID != "" {
		t.Fatalf("TerminalID = %q, want empty for a terminal with no window-id signal", id.TerminalID)
	}
	if id.SessionID == "" {
		t.Fatal("expected a generated SessionID when TerminalID is unavailable")
	}
}

func TestIdentityDBNamePrefersTerminalID(t *testing.T) {
	withID := Identity{Name: "kitty", TerminalID: "7", SessionID: "ignored"}
	if got := withID.DBName(); got != "kitty-7" {
		t.Fatalf("DBName() = %q, want kitty-7", got)
	}
	withoutID := Identity{Name: "generic", SessionID: "abc"}
	if got := withoutID.DBName(); got != "generic-abc" {
		t.Fatalf("DBName() = %q, want generic-abc", got)
	}
}

func TestResolveIdentityIsCachedAcrossCalls(t *testing.T) {
	a := ResolveIdentity()
	b := ResolveIdentity()
	if a != b {
		t.Fatalf("ResolveIdentity() not stable across calls: %+v != %+v", a, b)
	}
}
