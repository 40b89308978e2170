package plugins

import (
	"bytes"
	"sort"
	"strings"
)

const (
	// Header is the first line of every manifest written by this package.
	Header = "# This file was automatically generated by Mod Organizer."

	// LineTerminator ends every manifest line, the header included.
	LineTerminator = "\r\n"

	// EnabledMarker prefixes the name of an active plugin.
	EnabledMarker = '*'

	commentMarker = '#'
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IsCommentLine reports whether a raw manifest line carries no plugin: empty lines and
// lines starting with '#'.
func IsCommentLine(line []byte) bool {
	return len(line) == 0 || line[0] == commentMarker
}

// StripBOM removes a leading UTF-8 byte order mark, as written by some text editors.
func StripBOM(line []byte) []byte {
	return bytes.TrimPrefix(line, utf8BOM)
}

// TrimLine removes trailing whitespace and the line terminator from a raw manifest line.
func TrimLine(line []byte) []byte {
	return bytes.TrimRight(line, " \t\r\n\v\f")
}

// StripEnabledMarker removes exactly one leading enabled marker.
func StripEnabledMarker(name string) string {
	if len(name) > 0 && name[0] == EnabledMarker {
		return name[1:]
	}
	return name
}

// ContainsFold reports whether names holds name, ignoring case.
func ContainsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// AppendUniqueFold appends name unless names already holds it, ignoring case.
func AppendUniqueFold(names []string, name string) []string {
	if ContainsFold(names, name) {
		return names
	}
	return append(names, name)
}

// SortByPriority returns a copy of names stable-sorted by ascending priority.
func SortByPriority(names []string, priority func(string) int) []string {
	sorted := make([]string, len(names))
	copy(sorted, names)

	sort.SliceStable(sorted, func(i, j int) bool {
		return priority(sorted[i]) < priority(sorted[j])
	})

	return sorted
}
