package evmbytecode

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScanPushSizing(t *testing.T) {
	// PUSH1 0x01, PUSH1 0x02, MUL
	got, err := Scan("6001600202")
	if err != nil {
		t.Fatal(err)
	}

	want := []Instruction{
		{Index: 0, PC: 0, Opcode: 0x60, OperandLength: 1},
		{Index: 1, PC: 2, Opcode: 0x60, OperandLength: 1},
		{Index: 2, PC: 4, Opcode: 0x02, OperandLength: 0},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scanned instructions differ (-want +got):\n%s", diff)
	}
}

func TestScanPrefixOptional(t *testing.T) {
	bare, err := Scan("6001600202")
	if err != nil {
		t.Fatal(err)
	}
	prefixed, err := Scan("0x6001600202")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(bare, prefixed); diff != "" {
		t.Errorf("0x prefix changed the scan (-bare +prefixed):\n%s", diff)
	}
}

func TestScanPCMonotonicity(t *testing.T) {
	// PUSH32 with a full operand, PUSH0, JUMPDEST, PUSH2, STOP
	bytecode := "7f" + strings.Repeat("11", 32) + "5f5b61beef00"
	instructions, err := Scan(bytecode)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i < len(instructions); i++ {
		prev := instructions[i-1]
		if instructions[i].PC != prev.PC+1+prev.OperandLength {
			t.Errorf("pc[%d] = %d, want %d", i, instructions[i].PC, prev.PC+1+prev.OperandLength)
		}
		if instructions[i].PC <= prev.PC {
			t.Errorf("pc not strictly increasing at index %d", i)
		}
	}
}

func TestScanPushZeroHasNoOperand(t *testing.T) {
	instructions, err := Scan("5f5f")
	if err != nil {
		t.Fatal(err)
	}
	if len(instructions) != 2 {
		t.Fatalf("got %d instructions, want 2", len(instructions))
	}
	if instructions[0].OperandLength != 0 {
		t.Errorf("PUSH0 operand length = %d, want 0", instructions[0].OperandLength)
	}
}

func TestScanTruncatedPush(t *testing.T) {
	// PUSH4 with only two operand bytes present.
	instructions, err := Scan("0063beef")
	if err != nil {
		t.Fatalf("truncated push must not error: %v", err)
	}

	want := []Instruction{
		{Index: 0, PC: 0, Opcode: 0x00, OperandLength: 0},
		{Index: 1, PC: 1, Opcode: 0x63, OperandLength: 2},
	}
	if diff := cmp.Diff(want, instructions); diff != "" {
		t.Errorf("truncated scan differs (-want +got):\n%s", diff)
	}
}

func TestScanMalformed(t *testing.T) {
	for _, input := range []string{"600", "0x600", "xyz"} {
		_, err := Scan(input)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Scan(%q) error = %v, want ErrMalformed", input, err)
		}
	}
}

func TestScanEmpty(t *testing.T) {
	for _, input := range []string{"", "0x"} {
		instructions, err := Scan(input)
		if err != nil {
			t.Errorf("Scan(%q) returned error %v", input, err)
		}
		if len(instructions) != 0 {
			t.Errorf("Scan(%q) returned %d instructions, want 0", input, len(instructions))
		}
	}
}

func TestPCToIndex(t *testing.T) {
	instructions, err := Scan("6001600202")
	if err != nil {
		t.Fatal(err)
	}

	want := map[int]int{0: 0, 2: 1, 4: 2}
	if diff := cmp.Diff(want, PCToIndex(instructions)); diff != "" {
		t.Errorf("pc to index map differs (-want +got):\n%s", diff)
	}
}

func TestTrimMetadata(t *testing.T) {
	runtime := "0x6001600202"
	trailer := metadataPrefix + strings.Repeat("00", 43)
	withMetadata := runtime + trailer + "0033"

	if got := TrimMetadata(withMetadata); got != runtime {
		t.Errorf("TrimMetadata = %q, want %q", got, runtime)
	}

	// No trailer: string comes back untouched.
	if got := TrimMetadata(runtime); got != runtime {
		t.Errorf("TrimMetadata without trailer = %q, want %q", got, runtime)
	}
}
