// Package solc runs the Solidity compiler in standard-json mode and pulls
// out the artifacts the PC pipeline needs: deployed bytecode, the runtime
// source map, and the source id table.
package solc

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/reserve-protocol/soltrace/etherscan"
	"github.com/reserve-protocol/soltrace/srclocation"
)

type standardInput struct {
	Language string                      `json:"language"`
	Sources  map[string]etherscan.Source `json:"sources"`
	Settings settings                    `json:"settings"`
}

type settings struct {
	Optimizer       optimizer                      `json:"optimizer"`
	ViaIR           bool                           `json:"viaIR,omitempty"`
	EVMVersion      string                         `json:"evmVersion,omitempty"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type optimizer struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs,omitempty"`
}

// Output is the decoded standard-json compiler output, reduced to what the
// pipeline consumes.
type Output struct {
	Errors    []CompilerError                        `json:"errors"`
	Sources   map[string]SourceArtifact              `json:"sources"`
	Contracts map[string]map[string]ContractArtifact `json:"contracts"`
}

type CompilerError struct {
	Severity         string `json:"severity"`
	FormattedMessage string `json:"formattedMessage"`
}

// SourceArtifact carries the id solc assigned to a source file; source-map
// fileIndex fields refer to these ids. Content is present only when the
// output was produced by this package, which copies it in so that a saved
// Output is self-contained.
type SourceArtifact struct {
	ID      int    `json:"id"`
	Content string `json:"content,omitempty"`
}

type ContractArtifact struct {
	EVM struct {
		DeployedBytecode struct {
			Object    string `json:"object"`
			SourceMap string `json:"sourceMap"`
		} `json:"deployedBytecode"`
	} `json:"evm"`
}

// Compile runs solc --standard-json over the contract's sources. The solc
// binary is taken from the solc_path config key, defaulting to "solc" on
// PATH; the binary's version must match the contract's compiler version,
// which is the caller's responsibility. Warnings are tolerated, compile
// errors are not.
func Compile(ctx context.Context, contract etherscan.Contract) (Output, error) {
	input := standardInput{
		Language: "Solidity",
		Sources:  contract.Sources,
		Settings: settings{
			Optimizer:  optimizer{Enabled: contract.Optimization, Runs: contract.OptimizerRuns},
			ViaIR:      contract.ViaIR,
			EVMVersion: evmVersionOrEmpty(contract.EVMVersion),
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": {"evm.deployedBytecode.object", "evm.deployedBytecode.sourceMap"},
					"":  {"ast"},
				},
			},
		},
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return Output{}, err
	}

	solcPath := viper.GetString("solc_path")
	if solcPath == "" {
		solcPath = "solc"
	}

	cmd := exec.CommandContext(ctx, solcPath, "--standard-json")
	cmd.Stdin = bytes.NewReader(inputJSON)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Output{}, errors.Wrapf(err, "solc failed: %s", stderr.String())
	}

	var output Output
	if err := json.Unmarshal(out.Bytes(), &output); err != nil {
		return Output{}, errors.Wrap(err, "decoding solc output")
	}
	for _, compileErr := range output.Errors {
		if compileErr.Severity == "error" {
			return Output{}, errors.Errorf("solc: %s", compileErr.FormattedMessage)
		}
	}

	// Copy source contents into the output so downstream consumers (and
	// anything that persists the output) need only this one structure.
	for path, artifact := range output.Sources {
		if src, ok := contract.Sources[path]; ok {
			artifact.Content = src.Content
			output.Sources[path] = artifact
		}
	}

	return output, nil
}

// "Default" is what explorers report when the build did not pin an EVM
// version; solc rejects it as a literal value.
func evmVersionOrEmpty(version string) string {
	if version == "" || version == "Default" || version == "default" {
		return ""
	}
	return version
}

// Runtime returns the deployed bytecode and runtime source map for the named
// contract, or for the only contract in the output when name is empty.
// Contracts with empty deployed bytecode (interfaces, abstract contracts)
// are skipped during the search.
func (o Output) Runtime(name string) (bytecode, sourceMap string, err error) {
	for _, contracts := range o.Contracts {
		for contractName, artifact := range contracts {
			deployed := artifact.EVM.DeployedBytecode
			if deployed.Object == "" {
				continue
			}
			if name == "" || contractName == name {
				return deployed.Object, deployed.SourceMap, nil
			}
		}
	}
	if name == "" {
		return "", "", errors.New("no contract with deployed bytecode in compiler output")
	}
	return "", "", errors.Errorf("contract %q not found in compiler output", name)
}

// FileTable builds the resolver's file table from the output's source ids and
// contents.
func (o Output) FileTable() srclocation.FileTable {
	table := make(srclocation.FileTable, len(o.Sources))
	for path, artifact := range o.Sources {
		table[artifact.ID] = srclocation.SourceFile{
			ID:      artifact.ID,
			Path:    path,
			Content: artifact.Content,
		}
	}
	return table
}
