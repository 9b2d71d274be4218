package translate

import "strings"

// Fragment is a processed piece: its forwarded text and whether the next
// fragment continues the same argument.
type Fragment struct {
	Text       string
	Incomplete bool
}

// Assemble joins fragments into forwarded arguments. Incomplete fragments
// glue onto their successor with no separator. Text still buffered
// after a trailing incomplete fragment is flushed as a final argument rather
// than dropped.
func Assemble(fragments []Fragment) []string {
	var (
		args []string
		buf  strings.Builder
	)
	for _, f := range fragments {
		buf.WriteString(f.Text)
		if f.Incomplete {
			continue
		}
		args = append(args, buf.String())
		buf.Reset()
	}
	if buf.Len() > 0 {
		args = append(args, buf.String())
	}
	return args
}
