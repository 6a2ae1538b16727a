package srcmap

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeInheritance(t *testing.T) {
	got, err := Decode("10:5:0:-:0;;;20:3:1:i:1")
	if err != nil {
		t.Fatal(err)
	}

	want := []Instruction{
		{Index: 0, Start: 10, Length: 5, FileIndex: 0, Jump: JumpRegular, ModifierDepth: 0},
		{Index: 1, Start: 10, Length: 5, FileIndex: 0, Jump: JumpRegular, ModifierDepth: 0},
		{Index: 2, Start: 10, Length: 5, FileIndex: 0, Jump: JumpRegular, ModifierDepth: 0},
		{Index: 3, Start: 20, Length: 3, FileIndex: 1, Jump: JumpInto, ModifierDepth: 1},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded instructions differ (-want +got):\n%s", diff)
	}
}

func TestDecodePartialFields(t *testing.T) {
	// Entries may stop after any field; omitted and empty fields inherit.
	got, err := Decode("7:22:0:o;10;:9;::1")
	if err != nil {
		t.Fatal(err)
	}

	want := []Instruction{
		{Index: 0, Start: 7, Length: 22, FileIndex: 0, Jump: JumpOut},
		{Index: 1, Start: 10, Length: 22, FileIndex: 0, Jump: JumpOut},
		{Index: 2, Start: 10, Length: 9, FileIndex: 0, Jump: JumpOut},
		{Index: 3, Start: 10, Length: 9, FileIndex: 1, Jump: JumpOut},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded instructions differ (-want +got):\n%s", diff)
	}
}

func TestDecodeEmptyInputs(t *testing.T) {
	for _, input := range []string{"", "null"} {
		got, err := Decode(input)
		if err != nil {
			t.Errorf("Decode(%q) returned error %v", input, err)
		}
		if len(got) != 0 {
			t.Errorf("Decode(%q) returned %d instructions, want 0", input, len(got))
		}
	}
}

func TestDecodeSingleEmptySegmentCounts(t *testing.T) {
	// A trailing semicolon means one more (fully inherited) instruction.
	got, err := Decode("1:2:0:-;")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instructions, want 2", len(got))
	}
	if got[1].Start != 1 || got[1].Length != 2 {
		t.Errorf("trailing empty segment did not inherit: %+v", got[1])
	}
}

func TestDecodeNegativeSentinel(t *testing.T) {
	got, err := Decode("-1:-1:-1:-")
	if err != nil {
		t.Fatal(err)
	}
	want := Instruction{Index: 0, Start: -1, Length: -1, FileIndex: -1, Jump: JumpRegular}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("negative sentinel not preserved (-want +got):\n%s", diff)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, input := range []string{"abc:5:0", "10:x:0", "10:5:zz", "1:1:0:-:bad"} {
		_, err := Decode(input)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q) error = %v, want ErrMalformed", input, err)
		}
	}
}

func TestDecodeDeterministic(t *testing.T) {
	const input = "0:45:0:-;5:2:0:i;;;-1:-1:-1:-;:12"
	first, err := Decode(input)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Decode(input)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two decodes of the same input differ (-first +second):\n%s", diff)
	}
}

func TestJumpDescriptions(t *testing.T) {
	cases := []struct {
		jump JumpType
		want string
	}{
		{JumpInto, "jump_into_function"},
		{JumpOut, "jump_out_of_function"},
		{JumpRegular, "regular_instruction"},
		{JumpType('x'), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.jump.Description(); got != tc.want {
			t.Errorf("Description(%q) = %q, want %q", tc.jump, got, tc.want)
		}
	}
}
