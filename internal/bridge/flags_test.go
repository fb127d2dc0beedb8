package bridge

import "testing"

func TestSuppression(t *testing.T) {
	var s Suppression
	if s.Armed() != FlagNone || s.Count() != 0 {
		t.Fatalf("new Suppression has %s armed", s.Armed())
	}

	s.Arm(FlagRemoteInsert)
	if s.Armed() != FlagRemoteInsert || !s.IsArmed(FlagRemoteInsert) {
		t.Errorf("Armed() = %s, expected remote-insert", s.Armed())
	}
	if s.Consume(FlagLocalInsert) {
		t.Error("consumed a flag that was not armed")
	}
	if !s.Consume(FlagRemoteInsert) {
		t.Error("expected armed flag to be consumed")
	}
	if s.Consume(FlagRemoteInsert) {
		t.Error("flag consumed twice")
	}

	s.Arm(FlagLocalRemove)
	s.Arm(FlagRemoteRemove)
	if s.Count() != 2 {
		t.Errorf("Count() = %d, expected 2", s.Count())
	}
	s.Reset()
	if s.Armed() != FlagNone {
		t.Errorf("Armed() after Reset = %s", s.Armed())
	}
}

func TestFlag_String(t *testing.T) {
	tests := map[Flag]string{
		FlagNone:         "none",
		FlagLocalInsert:  "local-insert",
		FlagLocalRemove:  "local-remove",
		FlagRemoteInsert: "remote-insert",
		FlagRemoteRemove: "remote-remove",
		Flag(3):          "invalid",
	}
	for f, want := range tests {
		if got := f.String(); got != want {
			t.Errorf("Flag(%d).String() = %q, expected %q", f, got, want)
		}
	}
}

func TestCollapseLeadingNewline(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"\n", "\n"},
		{"\n    ", "\n"},
		{"\nfoo\nbar", "\n"},
		{"foo\n", "foo\n"},
		{"", ""},
		{"x", "x"},
	}
	for _, tt := range tests {
		if got := CollapseLeadingNewline(tt.in); got != tt.out {
			t.Errorf("CollapseLeadingNewline(%q) = %q, expected %q", tt.in, got, tt.out)
		}
	}
}
