// Package srcmap decodes the delta-compressed source maps emitted by solc.
//
// A runtime source map is a semicolon-separated list of instruction entries,
// one per bytecode instruction, each with up to five colon-separated fields:
// start:length:fileIndex:jumpType:modifierDepth. Fields that are empty or
// missing inherit the previous entry's value, so most entries are only a few
// characters long.
package srcmap

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed reports a source-map field that is present but does not parse.
// The wrapping error names the offending segment and its position.
var ErrMalformed = errors.New("malformed source map")

// JumpType classifies an instruction's relation to function calls.
type JumpType rune

const (
	JumpInto    JumpType = 'i'
	JumpOut     JumpType = 'o'
	JumpRegular JumpType = '-'
)

// Description returns the human-readable label used in annotated output.
func (j JumpType) Description() string {
	switch j {
	case JumpInto:
		return "jump_into_function"
	case JumpOut:
		return "jump_out_of_function"
	case JumpRegular:
		return "regular_instruction"
	}
	return "unknown"
}

// Instruction is one fully resolved source-map entry. Every field is concrete
// after decoding; nothing is left to inherit. Start and Length may be -1, the
// compiler's sentinel for code with no source counterpart.
type Instruction struct {
	Index         int
	Start         int
	Length        int
	FileIndex     int
	Jump          JumpType
	ModifierDepth int
}

// accumulator carries the previous entry's fields forward through the decode.
type accumulator struct {
	start         int
	length        int
	fileIndex     int
	jump          JumpType
	modifierDepth int
}

// Decode parses a runtime source map into one Instruction per entry, applying
// the inheritance rules. An empty string or the literal "null" decodes to an
// empty sequence. Decoding is a pure function of its input: the same string
// always yields the same instructions.
func Decode(sourceMap string) ([]Instruction, error) {
	if sourceMap == "" || sourceMap == "null" {
		return nil, nil
	}

	segments := strings.Split(sourceMap, ";")
	instructions := make([]Instruction, 0, len(segments))

	prev := accumulator{jump: JumpRegular}

	for i, segment := range segments {
		if segment != "" {
			for j, field := range strings.Split(segment, ":") {
				if field == "" {
					continue
				}
				switch j {
				case 0:
					v, err := strconv.Atoi(field)
					if err != nil {
						return nil, errors.Wrapf(ErrMalformed, "entry %d %q: start %q", i, segment, field)
					}
					prev.start = v
				case 1:
					v, err := strconv.Atoi(field)
					if err != nil {
						return nil, errors.Wrapf(ErrMalformed, "entry %d %q: length %q", i, segment, field)
					}
					prev.length = v
				case 2:
					v, err := strconv.Atoi(field)
					if err != nil {
						return nil, errors.Wrapf(ErrMalformed, "entry %d %q: file index %q", i, segment, field)
					}
					prev.fileIndex = v
				case 3:
					prev.jump = JumpType(field[0])
				case 4:
					v, err := strconv.Atoi(field)
					if err != nil {
						return nil, errors.Wrapf(ErrMalformed, "entry %d %q: modifier depth %q", i, segment, field)
					}
					prev.modifierDepth = v
				}
			}
		}

		instructions = append(instructions, Instruction{
			Index:         i,
			Start:         prev.start,
			Length:        prev.length,
			FileIndex:     prev.fileIndex,
			Jump:          prev.jump,
			ModifierDepth: prev.modifierDepth,
		})
	}

	return instructions, nil
}
