package bridge

import "strings"

// InsertFilter rewrites locally inserted text before it is sent.
type InsertFilter func(text string) string

// CollapseLeadingNewline narrows an insertion that starts with a line
// break down to the line break alone. Some editing widgets report an
// auto-indented line break as a single insertion of the break followed by
// indentation that they then insert again separately.
func CollapseLeadingNewline(text string) string {
	if len(text) > 1 && strings.HasPrefix(text, "\n") {
		return "\n"
	}
	return text
}
