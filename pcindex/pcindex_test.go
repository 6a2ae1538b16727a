package pcindex

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reserve-protocol/soltrace/evmbytecode"
	"github.com/reserve-protocol/soltrace/srcmap"
)

func mustDecode(t *testing.T, sourceMap string) []srcmap.Instruction {
	t.Helper()
	mapped, err := srcmap.Decode(sourceMap)
	if err != nil {
		t.Fatal(err)
	}
	return mapped
}

func mustScan(t *testing.T, bytecode string) []evmbytecode.Instruction {
	t.Helper()
	scanned, err := evmbytecode.Scan(bytecode)
	if err != nil {
		t.Fatal(err)
	}
	return scanned
}

func TestBuildJoinsOnInstructionIndex(t *testing.T) {
	mapped := mustDecode(t, "0:5:0:-;5:3:0:i;8:1:0:o")
	scanned := mustScan(t, "6001600202") // PCs 0, 2, 4

	index := Build(mapped, scanned)

	if len(index) != 3 {
		t.Fatalf("index has %d entries, want 3", len(index))
	}

	want := Entry{
		PC:               2,
		InstructionIndex: 1,
		Opcode:           0x60,
		OperandLength:    1,
		Start:            5,
		Length:           3,
		FileIndex:        0,
		Jump:             srcmap.JumpInto,
	}
	if diff := cmp.Diff(want, index[2]); diff != "" {
		t.Errorf("entry at PC 2 differs (-want +got):\n%s", diff)
	}

	for pc := range index {
		if pc != 0 && pc != 2 && pc != 4 {
			t.Errorf("unexpected key %d: only instruction-start PCs belong in the index", pc)
		}
	}
}

func TestBuildShorterSourceMap(t *testing.T) {
	// Bytecode continues past the mapped instructions: the compiler's
	// dispatch/metadata tail has no mapping and stays out of the index.
	mapped := mustDecode(t, "0:5:0:-")
	scanned := mustScan(t, "6001600202")

	index := Build(mapped, scanned)
	if len(index) != 1 {
		t.Fatalf("index has %d entries, want 1", len(index))
	}
	if _, ok := index[0]; !ok {
		t.Error("PC 0 missing from index")
	}
}

func TestBuildShorterBytecode(t *testing.T) {
	mapped := mustDecode(t, "0:5:0:-;5:3:0:-;8:1:0:-;9:1:0:-")
	scanned := mustScan(t, "6001") // one instruction

	index := Build(mapped, scanned)
	if len(index) != 1 {
		t.Fatalf("index has %d entries, want 1", len(index))
	}
}

func TestBuildEmpty(t *testing.T) {
	if index := Build(nil, nil); len(index) != 0 {
		t.Errorf("empty inputs built %d entries", len(index))
	}
}

func TestExpandCoversOperandBytes(t *testing.T) {
	mapped := mustDecode(t, "0:5:0:-;5:3:0:-;8:1:0:-")
	scanned := mustScan(t, "6001600202")

	dense := Expand(Build(mapped, scanned))

	// Every PC from 0 through the final instruction is present.
	for pc := 0; pc <= 4; pc++ {
		if _, ok := dense[pc]; !ok {
			t.Errorf("dense index missing PC %d", pc)
		}
	}
	if len(dense) != 5 {
		t.Errorf("dense index has %d entries, want 5", len(dense))
	}

	// Operand bytes map to the owning instruction.
	if dense[1].PC != 0 || dense[3].PC != 2 {
		t.Errorf("operand PCs do not map to their owning instruction: %+v, %+v", dense[1], dense[3])
	}
}

func TestSummarize(t *testing.T) {
	mapped := mustDecode(t, "0:5:0:-;5:3:0:i;8:1:0:o")
	scanned := mustScan(t, "6001600202")

	summary := Summarize(Build(mapped, scanned))

	want := Summary{
		Entries: 3,
		MinPC:   0,
		MaxPC:   4,
		JumpCounts: map[string]int{
			"regular_instruction":  1,
			"jump_into_function":   1,
			"jump_out_of_function": 1,
		},
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary differs (-want +got):\n%s", diff)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Entries != 0 || summary.MinPC != 0 || summary.MaxPC != 0 {
		t.Errorf("empty summary = %+v", summary)
	}
	if summary.JumpCounts == nil {
		t.Error("JumpCounts must be non-nil even when empty")
	}
}

func TestSortedPCs(t *testing.T) {
	mapped := mustDecode(t, "0:5:0:-;5:3:0:-;8:1:0:-")
	scanned := mustScan(t, "6001600202")

	got := SortedPCs(Build(mapped, scanned))
	if diff := cmp.Diff([]int{0, 2, 4}, got); diff != "" {
		t.Errorf("sorted PCs differ (-want +got):\n%s", diff)
	}
}
