package script

import (
	"regexp"
	"strconv"
)

var markerPattern = regexp.MustCompile(`^#line (\d+) ("(?:[^"\\]|\\.)*")$`)

// Location is a position in an original script file.
type Location struct {
	File string
	Line int
}

// LineMap translates line numbers in composed output back to the files the
// user edited.
type LineMap struct {
	locations []Location // Index 0 is composed line 1; markers map to the zero Location
}

// NewLineMap indexes a composed line sequence.
func NewLineMap(composed []string) *LineMap {
	m := &LineMap{locations: make([]Location, len(composed))}

	var file string
	next := 0
	for i, line := range composed {
		if match := markerPattern.FindStringSubmatch(line); match != nil {
			n, err := strconv.Atoi(match[1])
			name, qerr := strconv.Unquote(match[2])
			if err == nil && qerr == nil {
				file = name
				next = n
				continue
			}
		}
		if file == "" {
			continue
		}
		m.locations[i] = Location{File: file, Line: next}
		next++
	}

	return m
}

// Translate maps a 1-based composed line number to its origin. It returns
// false for markers and out-of-range lines.
func (m *LineMap) Translate(composedLine int) (Location, bool) {
	if composedLine < 1 || composedLine > len(m.locations) {
		return Location{}, false
	}
	loc := m.locations[composedLine-1]
	return loc, loc.File != ""
}
