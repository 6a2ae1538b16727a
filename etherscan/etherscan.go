// Package etherscan fetches verified contract source from an
// Etherscan-compatible explorer API. It produces plain data for the rest of
// the pipeline; nothing else in the module performs network access.
package etherscan

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultBaseURL is the mainnet Etherscan API endpoint.
const DefaultBaseURL = "https://api.etherscan.io/api"

// Client talks to one explorer endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient returns a client for the given endpoint. An empty baseURL selects
// DefaultBaseURL.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Source is one verified source file's content.
type Source struct {
	Content string `json:"content"`
}

// Contract is the verified-source record for one address: the source files in
// the explorer's order plus the compilation settings needed to reproduce the
// build.
type Contract struct {
	Name            string
	CompilerVersion string
	EVMVersion      string
	Optimization    bool
	OptimizerRuns   int
	ViaIR           bool
	// Sources preserves the explorer's file order, which is the order solc
	// assigns source ids in.
	SourceOrder []string
	Sources     map[string]Source
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type sourceCodeResult struct {
	SourceCode       string
	ContractName     string
	CompilerVersion  string
	OptimizationUsed string
	Runs             string
	EVMVersion       string
}

// GetSource fetches the verified source for address. It returns an error when
// the explorer reports failure or the address has no verified source.
func (c *Client) GetSource(ctx context.Context, address string) (Contract, error) {
	params := url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address},
		"apikey":  {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Contract{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Contract{}, errors.Wrap(err, "explorer request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Contract{}, errors.Wrap(err, "reading explorer response")
	}
	if resp.StatusCode != http.StatusOK {
		return Contract{}, errors.Errorf("explorer returned HTTP %d", resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Contract{}, errors.Wrap(err, "decoding explorer response")
	}
	if envelope.Status != "1" {
		return Contract{}, errors.Errorf("explorer error: %s", envelope.Message)
	}

	var results []sourceCodeResult
	if err := json.Unmarshal(envelope.Result, &results); err != nil {
		return Contract{}, errors.Wrap(err, "decoding source result")
	}
	if len(results) == 0 || results[0].SourceCode == "" {
		return Contract{}, errors.Errorf("no verified source for %s", address)
	}

	return parseContract(results[0])
}

// standardJSONSource is the subset of a solc standard-json input embedded in
// a verified-source response.
type standardJSONSource struct {
	Sources  map[string]Source `json:"sources"`
	Settings struct {
		Optimizer struct {
			Enabled bool `json:"enabled"`
			Runs    int  `json:"runs"`
		} `json:"optimizer"`
		ViaIR      bool   `json:"viaIR"`
		EVMVersion string `json:"evmVersion"`
	} `json:"settings"`
}

// parseContract normalizes the three shapes SourceCode arrives in: a plain
// single file, a JSON object of sources, or a whole standard-json input
// wrapped in doubled braces.
func parseContract(result sourceCodeResult) (Contract, error) {
	contract := Contract{
		Name:            result.ContractName,
		CompilerVersion: result.CompilerVersion,
		EVMVersion:      result.EVMVersion,
		Optimization:    result.OptimizationUsed == "1",
	}
	if runs, err := strconv.Atoi(result.Runs); err == nil {
		contract.OptimizerRuns = runs
	}

	raw := result.SourceCode
	if strings.HasPrefix(raw, "{{") && strings.HasSuffix(raw, "}}") {
		raw = raw[1 : len(raw)-1]
	}

	if strings.HasPrefix(raw, "{") {
		var standard standardJSONSource
		if err := json.Unmarshal([]byte(raw), &standard); err == nil && len(standard.Sources) > 0 {
			contract.Sources = standard.Sources
			contract.Optimization = standard.Settings.Optimizer.Enabled
			if standard.Settings.Optimizer.Runs > 0 {
				contract.OptimizerRuns = standard.Settings.Optimizer.Runs
			}
			contract.ViaIR = standard.Settings.ViaIR
			if standard.Settings.EVMVersion != "" {
				contract.EVMVersion = standard.Settings.EVMVersion
			}
			contract.SourceOrder = sortedKeys(standard.Sources)
			return contract, nil
		}

		// Some responses are a bare {"path": {"content": ...}} object.
		var bare map[string]Source
		if err := json.Unmarshal([]byte(raw), &bare); err == nil && len(bare) > 0 {
			valid := true
			for _, src := range bare {
				if src.Content == "" {
					valid = false
					break
				}
			}
			if valid {
				contract.Sources = bare
				contract.SourceOrder = sortedKeys(bare)
				return contract, nil
			}
		}
	}

	// Plain single-file source.
	path := contract.Name + ".sol"
	if contract.Name == "" {
		path = "main.sol"
	}
	contract.Sources = map[string]Source{path: {Content: result.SourceCode}}
	contract.SourceOrder = []string{path}
	return contract, nil
}

func sortedKeys(sources map[string]Source) []string {
	keys := make([]string, 0, len(sources))
	for key := range sources {
		keys = append(keys, key)
	}
	// Lexicographic order stands in for the original input order, which the
	// getsourcecode response does not preserve. solc assigns ids in its own
	// sorted order anyway, so the id table from compilation is authoritative.
	sort.Strings(keys)
	return keys
}
