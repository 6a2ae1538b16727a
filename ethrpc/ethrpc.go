// Package ethrpc fetches execution traces and runtime bytecode from an
// Ethereum node over JSON-RPC. It is the only part of the module that talks
// to a node; everything downstream works on the plain data it returns.
package ethrpc

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/reserve-protocol/soltrace/trace"
)

// Client wraps one node connection.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

// Dial connects to the node at rawURL.
func Dial(ctx context.Context, rawURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", rawURL)
	}
	return &Client{rpc: rpcClient, eth: ethclient.NewClient(rpcClient)}, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

// traceResult mirrors the debug_traceTransaction response. The struct logs
// stay raw so that every field the tracer emitted survives into the opaque
// trace entries.
type traceResult struct {
	Gas         uint64            `json:"gas"`
	Failed      bool              `json:"failed"`
	ReturnValue string            `json:"returnValue"`
	StructLogs  []json.RawMessage `json:"structLogs"`
}

// TransactionTrace replays the transaction with the node's struct-log tracer
// and returns one opaque entry per executed opcode. Stack, memory, and
// storage capture are disabled; the pipeline only needs the pc field, and a
// full capture of a long transaction can run to gigabytes.
func (c *Client) TransactionTrace(ctx context.Context, txHash common.Hash) ([]trace.Entry, error) {
	var result traceResult
	err := c.rpc.CallContext(ctx, &result, "debug_traceTransaction", txHash, map[string]any{
		"disableStack":   true,
		"disableMemory":  true,
		"disableStorage": true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "tracing %s", txHash.Hex())
	}

	entries := make([]trace.Entry, 0, len(result.StructLogs))
	for i, raw := range result.StructLogs {
		var entry trace.Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errors.Wrapf(err, "decoding struct log %d", i)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// TransactionTarget returns the address the transaction called. Contract
// creations have no target and are reported as an error, since there is no
// deployed bytecode to map the trace against.
func (c *Client) TransactionTarget(ctx context.Context, txHash common.Hash) (common.Address, error) {
	tx, _, err := c.eth.TransactionByHash(ctx, txHash)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "fetching transaction %s", txHash.Hex())
	}
	if tx.To() == nil {
		return common.Address{}, errors.New("transaction is a contract creation")
	}
	return *tx.To(), nil
}

// RuntimeBytecode returns the deployed bytecode at address as a 0x-prefixed
// hex string, the shape the scanner takes.
func (c *Client) RuntimeBytecode(ctx context.Context, address common.Address) (string, error) {
	code, err := c.eth.CodeAt(ctx, address, nil)
	if err != nil {
		return "", errors.Wrapf(err, "fetching code at %s", address.Hex())
	}
	return hexutil.Encode(code), nil
}
