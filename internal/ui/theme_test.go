package ui

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	for _, name := range names {
		if got := GetTheme(name).Name; got != name {
			t.Fatalf("GetTheme(%q).Name = %q", name, got)
		}
	}
}

func TestNextTheme(t *testing.T) {
	tests := map[string]string{
		"Slate":    "Nightfox",
		"Nightfox": "Kanagawa",
		"Kanagawa": "Slate",
		"Unknown":  "Slate",
	}
	for in, want := range tests {
		if got := NextTheme(in); got != want {
			t.Fatalf("NextTheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetTheme_UnknownFallsBackToSlate(t *testing.T) {
	if got := GetTheme("Solarized").Name; got != "Slate" {
		t.Fatalf("GetTheme(Solarized).Name = %q, want Slate (fallback)", got)
	}
}

func TestBadgeStyle_MutedWhenUnknownOrLocked(t *testing.T) {
	th := GetTheme("Slate")
	styles := th.Styles()

	on := styles.BadgeStyle(true, true, true).GetBackground()
	if on != styles.BadgeStyle(true, true, true).GetBackground() {
		t.Fatal("BadgeStyle is not deterministic")
	}
	if got := styles.BadgeStyle(true, false, true).GetBackground(); got == on {
		t.Fatal("unknown value rendered with the on color")
	}
	if got := styles.BadgeStyle(true, true, false).GetBackground(); got == on {
		t.Fatal("locked control rendered with the on color")
	}
}
