package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	pcmapFile string
	lookupPC  int
)

func init() {
	lookupCmd.Flags().StringVar(&pcmapFile, "input", "pcmap.json", "PC map file produced by the pcmap command")
	lookupCmd.Flags().IntVar(&lookupPC, "pc", 0, "program counter to look up")
	lookupCmd.MarkFlagRequired("pc")
	rootCmd.AddCommand(lookupCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Looks up the source mapping of one program counter",
	Run:   Lookup,
}

func Lookup(cmd *cobra.Command, args []string) {
	raw, err := os.ReadFile(pcmapFile)
	check(err, "failed to read PC map")

	var document pcmapDocument
	check(json.Unmarshal(raw, &document), "failed to decode PC map")

	record, ok := document.PCToSource[strconv.Itoa(lookupPC)]
	if !ok {
		fmt.Printf("No source mapping for PC %d\n", lookupPC)
		return
	}

	encoded, err := json.MarshalIndent(record, "", "  ")
	check(err, "failed to encode record")
	fmt.Println(string(encoded))
}
