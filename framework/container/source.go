package container

import (
	"cmp"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

// Source is the call site of a registration.
type Source struct {
	File string
	Line int
}

func (s Source) String() string {
	if s.File == "" {
		return "<unknown>"
	}
	return s.File + ":" + strconv.Itoa(s.Line)
}

// Caller returns the call site skip frames above the caller of Caller.
func Caller(skip int) Source { return callerSource(skip + 1) }

// callerSource returns the call site skip frames above its caller.
func callerSource(skip int) Source {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Source{}
	}
	return Source{File: file, Line: line}
}

func sortSources(sources []Source) []Source {
	slices.SortFunc(sources, func(a, b Source) int {
		return cmp.Or(cmp.Compare(a.File, b.File), cmp.Compare(a.Line, b.Line))
	})
	return sources
}

func joinSources(sources []Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}
