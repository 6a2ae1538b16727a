package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/reserve-protocol/soltrace/evmbytecode"
	"github.com/reserve-protocol/soltrace/pcindex"
	"github.com/reserve-protocol/soltrace/solc"
	"github.com/reserve-protocol/soltrace/srclocation"
	"github.com/reserve-protocol/soltrace/srcmap"
)

var (
	compilerOutputFile string
	contractName       string
	pcmapOutputFile    string
	dense              bool
)

func init() {
	pcmapCmd.Flags().StringVar(&compilerOutputFile, "input", "", "solc standard-json output file (with source contents)")
	pcmapCmd.Flags().StringVar(&contractName, "contract", "", "contract name (default: the only contract with deployed bytecode)")
	pcmapCmd.Flags().StringVarP(&pcmapOutputFile, "output", "o", "pcmap.json", "output file")
	pcmapCmd.Flags().BoolVar(&dense, "dense", false, "also map PCs inside push operands to their owning instruction")
	pcmapCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(pcmapCmd)
}

var pcmapCmd = &cobra.Command{
	Use:   "pcmap",
	Short: "Converts a compiled contract's source map into a PC-indexed JSON table",
	Run:   PCMap,
}

// pcRecord is one exported PC mapping, resolved against the sources when
// possible. Records whose source range cannot be resolved keep the numeric
// fields and leave the location fields zero.
type pcRecord struct {
	PC               int    `json:"pc"`
	InstructionIndex int    `json:"instruction_index"`
	Opcode           string `json:"opcode"`
	Jump             string `json:"jump"`
	Start            int    `json:"start"`
	Length           int    `json:"length"`
	FileIndex        int    `json:"file_index"`
	SourcePath       string `json:"source_path,omitempty"`
	LineStart        int    `json:"line_start,omitempty"`
	ColumnStart      int    `json:"column_start,omitempty"`
	LineEnd          int    `json:"line_end,omitempty"`
	ColumnEnd        int    `json:"column_end,omitempty"`
	Snippet          string `json:"snippet,omitempty"`
}

type pcmapMetadata struct {
	TotalInstructions int            `json:"total_instructions"`
	MappedPCs         int            `json:"mapped_pcs"`
	PCRange           pcRange        `json:"pc_range"`
	JumpTypeCounts    map[string]int `json:"jump_type_counts"`
	SourceFiles       int            `json:"source_files"`
}

type pcRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type pcmapDocument struct {
	Metadata   pcmapMetadata       `json:"metadata"`
	PCToSource map[string]pcRecord `json:"pc_to_source"`
}

func PCMap(cmd *cobra.Command, args []string) {
	raw, err := os.ReadFile(compilerOutputFile)
	check(err, "failed to read compiler output")

	var output solc.Output
	check(json.Unmarshal(raw, &output), "failed to decode compiler output")

	bytecode, sourceMap, err := output.Runtime(contractName)
	check(err, "no runtime artifacts in compiler output")

	mapped, err := srcmap.Decode(sourceMap)
	check(err, "failed to decode source map")

	scanned, err := evmbytecode.Scan(bytecode)
	check(err, "failed to scan bytecode")

	index := pcindex.Build(mapped, scanned)
	if dense {
		index = pcindex.Expand(index)
	}

	document := exportIndex(index, output.FileTable())
	document.Metadata.TotalInstructions = len(mapped)

	encoded, err := json.MarshalIndent(document, "", "  ")
	check(err, "failed to encode PC map")
	check(os.WriteFile(pcmapOutputFile, encoded, 0644), "failed to write output")

	log.Info("Wrote PC map",
		"file", pcmapOutputFile,
		"mappedPCs", document.Metadata.MappedPCs,
		"pcMin", document.Metadata.PCRange.Min,
		"pcMax", document.Metadata.PCRange.Max,
	)
}

func exportIndex(index map[int]pcindex.Entry, files srclocation.FileTable) pcmapDocument {
	summary := pcindex.Summarize(index)
	document := pcmapDocument{
		Metadata: pcmapMetadata{
			MappedPCs:      summary.Entries,
			PCRange:        pcRange{Min: summary.MinPC, Max: summary.MaxPC},
			JumpTypeCounts: summary.JumpCounts,
			SourceFiles:    len(files),
		},
		PCToSource: make(map[string]pcRecord, len(index)),
	}

	for _, pc := range pcindex.SortedPCs(index) {
		entry := index[pc]
		record := pcRecord{
			PC:               pc,
			InstructionIndex: entry.InstructionIndex,
			Opcode:           fmt.Sprintf("0x%02x", entry.Opcode),
			Jump:             entry.Jump.Description(),
			Start:            entry.Start,
			Length:           entry.Length,
			FileIndex:        entry.FileIndex,
		}
		if location, ok := srclocation.Resolve(files, entry.FileIndex, entry.Start, entry.Length); ok {
			record.SourcePath = location.FilePath
			record.LineStart = location.LineStart
			record.ColumnStart = location.ColStart
			record.LineEnd = location.LineEnd
			record.ColumnEnd = location.ColEnd
			record.Snippet = location.Snippet
		}
		document.PCToSource[strconv.Itoa(pc)] = record
	}
	return document
}
