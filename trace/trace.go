// Package trace annotates opcode-level execution traces with the source
// locations a PC index resolves them to.
package trace

import (
	"context"
	"encoding/json"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/reserve-protocol/soltrace/pcindex"
	"github.com/reserve-protocol/soltrace/srclocation"
)

// Entry is one trace record. The trace format is caller-defined; only the
// "pc" field is interpreted and every other field passes through untouched.
type Entry map[string]any

// PC extracts the entry's program counter. The second return value is false
// when the field is missing or not a number. JSON decoding may deliver the
// value as float64, json.Number, or an integer type depending on the caller's
// decoder settings.
func (e Entry) PC() (int, bool) {
	v, ok := e["pc"]
	if !ok {
		return 0, false
	}
	switch pc := v.(type) {
	case float64:
		return int(pc), true
	case int:
		return pc, true
	case int64:
		return int(pc), true
	case uint64:
		return int(pc), true
	case json.Number:
		n, err := pc.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// Source is the sub-record attached to an annotated entry.
type Source struct {
	File           string `json:"file"`
	Line           int    `json:"line"`
	Column         int    `json:"column"`
	LineEnd        int    `json:"line_end"`
	ColumnEnd      int    `json:"column_end"`
	Snippet        string `json:"snippet"`
	BytecodeOffset int    `json:"bytecode_offset"`
	Length         int    `json:"length"`
	Jump           string `json:"jump"`
}

// Stats summarizes one annotation pass.
type Stats struct {
	TotalEntries     int     `json:"total_entries"`
	AnnotatedEntries int     `json:"entries_with_source"`
	SourceFiles      int     `json:"source_files"`
	CoveragePercent  float64 `json:"coverage_percent"`
}

// annotateEntry resolves a single entry. Entries without a pc, with a pc the
// index does not map, or referencing an unresolvable source range pass
// through as-is. Annotated entries are shallow copies, so the caller's input
// is never mutated; an entry that already carries a "source" field gets it
// overwritten with the freshly resolved value, which makes re-annotation
// against the same index a no-op.
func annotateEntry(entry Entry, index map[int]pcindex.Entry, files srclocation.FileTable) (Entry, bool) {
	pc, ok := entry.PC()
	if !ok {
		return entry, false
	}
	mapping, ok := index[pc]
	if !ok {
		return entry, false
	}
	location, ok := srclocation.Resolve(files, mapping.FileIndex, mapping.Start, mapping.Length)
	if !ok {
		return entry, false
	}

	annotated := make(Entry, len(entry)+1)
	for k, v := range entry {
		annotated[k] = v
	}
	annotated["source"] = Source{
		File:           location.FilePath,
		Line:           location.LineStart,
		Column:         location.ColStart,
		LineEnd:        location.LineEnd,
		ColumnEnd:      location.ColEnd,
		Snippet:        location.Snippet,
		BytecodeOffset: mapping.Start,
		Length:         mapping.Length,
		Jump:           mapping.Jump.Description(),
	}
	return annotated, true
}

func stats(entries []Entry, annotated int, files srclocation.FileTable) Stats {
	s := Stats{
		TotalEntries:     len(entries),
		AnnotatedEntries: annotated,
		SourceFiles:      len(files),
	}
	if len(entries) > 0 {
		s.CoveragePercent = float64(annotated) / float64(len(entries)) * 100
	}
	return s
}

// Annotate resolves every entry against the PC index and file table,
// returning the annotated sequence in input order along with stats. Entries
// that cannot be resolved are passed through unchanged; an empty input yields
// an empty output and zero stats.
func Annotate(index map[int]pcindex.Entry, files srclocation.FileTable, entries []Entry) ([]Entry, Stats) {
	if len(entries) == 0 {
		return nil, stats(entries, 0, files)
	}

	annotated := make([]Entry, len(entries))
	count := 0
	for i, entry := range entries {
		out, ok := annotateEntry(entry, index, files)
		annotated[i] = out
		if ok {
			count++
		}
	}
	return annotated, stats(entries, count, files)
}

// AnnotateParallel is Annotate partitioned across workers. Entries are
// independent of each other, so the split is by contiguous chunks with each
// worker writing its own output slots; input order is preserved. workers <= 0
// means one per CPU.
func AnnotateParallel(ctx context.Context, index map[int]pcindex.Entry, files srclocation.FileTable, entries []Entry, workers int) ([]Entry, Stats, error) {
	if len(entries) == 0 {
		return nil, stats(entries, 0, files), nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(entries) {
		workers = len(entries)
	}

	annotated := make([]Entry, len(entries))
	counts := make([]int, workers)

	group, ctx := errgroup.WithContext(ctx)
	chunk := (len(entries) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(entries) {
			hi = len(entries)
		}
		w, lo, hi := w, lo, hi
		group.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out, ok := annotateEntry(entries[i], index, files)
				annotated[i] = out
				if ok {
					counts[w]++
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, Stats{}, err
	}

	count := 0
	for _, c := range counts {
		count += c
	}
	return annotated, stats(entries, count, files), nil
}
