package lines

import (
	"fmt"
	"strings"
)

// Lines accumulates multi-line reports. Every added line is prefixed
type Lines struct {
	prefix string
	l      []string
}

func New(prefix ...string) *Lines {
	ret := &Lines{}
	if len(prefix) > 0 {
		ret.prefix = prefix[0]
	}
	return ret
}

func (l *Lines) Add(format string, args ...any) *Lines {
	l.l = append(l.l, l.prefix+fmt.Sprintf(format, args...))
	return l
}

// Append lines of another report as is, their own prefix is kept
func (l *Lines) Append(ln *Lines) *Lines {
	l.l = append(l.l, ln.l...)
	return l
}

func (l *Lines) Len() int {
	return len(l.l)
}

func (l *Lines) Join(sep string) string {
	return strings.Join(l.l, sep)
}

func (l *Lines) String() string {
	return l.Join("\n")
}
