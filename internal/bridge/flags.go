package bridge

// Flag names one of the one-shot suppression flags.
type Flag uint8

// Suppression flags. FlagNone means nothing is armed.
const (
	FlagNone Flag = 0
	// FlagLocalInsert swallows the buffer insertion caused by a remote apply.
	FlagLocalInsert Flag = 1 << (iota - 1)
	// FlagLocalRemove swallows the buffer removal caused by a remote apply.
	FlagLocalRemove
	// FlagRemoteInsert swallows the session echo of a forwarded insertion.
	FlagRemoteInsert
	// FlagRemoteRemove swallows the session echo of a forwarded removal.
	FlagRemoteRemove
)

var flagNames = map[Flag]string{
	FlagNone:         "none",
	FlagLocalInsert:  "local-insert",
	FlagLocalRemove:  "local-remove",
	FlagRemoteInsert: "remote-insert",
	FlagRemoteRemove: "remote-remove",
}

// String returns the flag name.
func (f Flag) String() string {
	if name, ok := flagNames[f]; ok {
		return name
	}
	return "invalid"
}

// Suppression is the set of one-shot flags. Under single-threaded dispatch
// at most one flag is armed at any time.
type Suppression struct {
	armed Flag
}

// Arm sets f.
func (s *Suppression) Arm(f Flag) {
	s.armed |= f
}

// Consume reports whether f was armed and disarms it.
func (s *Suppression) Consume(f Flag) bool {
	if s.armed&f == 0 {
		return false
	}
	s.armed &^= f
	return true
}

// IsArmed reports whether f is armed.
func (s *Suppression) IsArmed(f Flag) bool {
	return s.armed&f != 0
}

// Armed returns the armed flag, FlagNone if nothing is armed. If several
// flags are armed, which would be a dispatch bug, the lowest one is
// returned; Count tells them apart.
func (s *Suppression) Armed() Flag {
	for f := FlagLocalInsert; f <= FlagRemoteRemove; f <<= 1 {
		if s.armed&f != 0 {
			return f
		}
	}
	return FlagNone
}

// Count returns the number of armed flags.
func (s *Suppression) Count() int {
	n := 0
	for f := FlagLocalInsert; f <= FlagRemoteRemove; f <<= 1 {
		if s.armed&f != 0 {
			n++
		}
	}
	return n
}

// Reset disarms every flag.
func (s *Suppression) Reset() {
	s.armed = FlagNone
}
