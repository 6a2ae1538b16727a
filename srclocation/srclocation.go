// Package srclocation turns (file, byte offset, length) triples into line and
// column coordinates plus the code snippet they cover. Source files live in
// an in-memory table loaded once per contract; nothing here touches the
// filesystem.
package srclocation

import "strings"

// SourceFile is one source file the compiler saw, keyed in a FileTable by the
// id the source map's fileIndex field refers to. Content is immutable once
// loaded.
type SourceFile struct {
	ID      int
	Path    string
	Content string
}

// FileTable maps source-map file indices to their files. It is built once and
// then shared read-only across lookups.
type FileTable map[int]SourceFile

// Location is a resolved byte range: 1-based line/column coordinates for both
// ends, the covered snippet trimmed for display, and the untrimmed byte
// offset and length it was computed from.
type Location struct {
	FilePath  string
	LineStart int
	ColStart  int
	LineEnd   int
	ColEnd    int
	Snippet   string
	Start     int
	Length    int
}

// lineCol converts a byte offset into 1-based line and column coordinates.
// The caller guarantees 0 <= offset <= len(content).
func lineCol(content string, offset int) (int, int) {
	line := strings.Count(content[:offset], "\n") + 1
	lineStart := strings.LastIndex(content[:offset], "\n") + 1
	return line, offset - lineStart + 1
}

// Resolve looks up a byte range in the file table. The second return value is
// false when the range cannot be resolved: unknown file index, the
// compiler's negative-start sentinel, a non-positive length, or a start past
// the end of the file. The end coordinates are computed from the clamped end
// offset, so multi-line ranges report where they actually stop.
func Resolve(table FileTable, fileIndex, start, length int) (Location, bool) {
	file, ok := table[fileIndex]
	if !ok {
		return Location{}, false
	}
	if start < 0 || length <= 0 || start >= len(file.Content) {
		return Location{}, false
	}

	end := start + length
	if end > len(file.Content) {
		end = len(file.Content)
	}

	lineStart, colStart := lineCol(file.Content, start)
	lineEnd, colEnd := lineCol(file.Content, end)

	return Location{
		FilePath:  file.Path,
		LineStart: lineStart,
		ColStart:  colStart,
		LineEnd:   lineEnd,
		ColEnd:    colEnd,
		Snippet:   strings.TrimSpace(file.Content[start:end]),
		Start:     start,
		Length:    length,
	}, true
}
