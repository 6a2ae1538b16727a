package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reserve-protocol/soltrace/etherscan"
	"github.com/reserve-protocol/soltrace/evmbytecode"
	"github.com/reserve-protocol/soltrace/pcindex"
	"github.com/reserve-protocol/soltrace/solc"
	"github.com/reserve-protocol/soltrace/srclocation"
	"github.com/reserve-protocol/soltrace/srcmap"
	"github.com/reserve-protocol/soltrace/trace"
)

var (
	traceFile   string
	address     string
	outputFile  string
	workerCount int
)

func init() {
	enhanceCmd.Flags().StringVar(&traceFile, "trace", "", "trace JSON file (a list of entries with pc fields)")
	enhanceCmd.Flags().StringVar(&address, "address", "", "contract address the trace executed")
	enhanceCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: enhanced_<input>)")
	enhanceCmd.Flags().IntVar(&workerCount, "workers", 0, "annotation workers (default: one per CPU)")
	enhanceCmd.MarkFlagRequired("trace")
	enhanceCmd.MarkFlagRequired("address")
	rootCmd.AddCommand(enhanceCmd)
}

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Annotates a trace file with source locations",
	Long: `Annotates each entry of an execution trace with the source file, line,
column, and code snippet its program counter maps to. The contract's verified
source is fetched from the explorer and recompiled to obtain the runtime
source map.`,
	Run: Enhance,
}

func Enhance(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	raw, err := os.ReadFile(traceFile)
	check(err, "failed to read trace file")

	var entries []trace.Entry
	check(json.Unmarshal(raw, &entries), "trace file is not a JSON list of entries")
	log.Info("Loaded trace", "entries", len(entries))

	index, files, err := buildIndexForAddress(ctx, address)
	check(err, "failed to build PC index")

	annotated, stats, err := trace.AnnotateParallel(ctx, index, files, entries, workerCount)
	check(err, "annotation failed")
	log.Info("Annotated trace",
		"total", stats.TotalEntries,
		"annotated", stats.AnnotatedEntries,
		"coverage", stats.CoveragePercent,
		"sourceFiles", stats.SourceFiles,
	)

	out := struct {
		Trace []trace.Entry `json:"trace"`
		Stats trace.Stats   `json:"stats"`
	}{annotated, stats}

	encoded, err := json.MarshalIndent(out, "", "  ")
	check(err, "failed to encode annotated trace")

	if outputFile == "" {
		outputFile = filepath.Join(filepath.Dir(traceFile), "enhanced_"+filepath.Base(traceFile))
	}
	check(os.WriteFile(outputFile, encoded, 0644), "failed to write output")
	log.Info("Wrote annotated trace", "file", outputFile)
}

// buildIndexForAddress fetches the contract's verified source, recompiles it,
// and builds the PC index and file table for its runtime bytecode.
func buildIndexForAddress(ctx context.Context, address string) (map[int]pcindex.Entry, srclocation.FileTable, error) {
	explorer := etherscan.NewClient(viper.GetString("etherscan_url"), viper.GetString("etherscan_api_key"))
	contract, err := explorer.GetSource(ctx, address)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Fetched verified source", "contract", contract.Name, "files", len(contract.Sources), "compiler", contract.CompilerVersion)

	output, err := solc.Compile(ctx, contract)
	if err != nil {
		return nil, nil, err
	}

	bytecode, sourceMap, err := output.Runtime(contract.Name)
	if err != nil {
		return nil, nil, err
	}

	mapped, err := srcmap.Decode(sourceMap)
	if err != nil {
		return nil, nil, err
	}
	scanned, err := evmbytecode.Scan(bytecode)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("Built PC index", "mappedInstructions", len(mapped), "scannedInstructions", len(scanned))

	return pcindex.Build(mapped, scanned), output.FileTable(), nil
}
