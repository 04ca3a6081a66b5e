package stub

import (
	"context"
	"sync"

	"pumpguard/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
// Unknown transactions and accounts read as nil, like a node that has not seen them.
type RPCClient struct {
	mu           sync.RWMutex
	transactions map[string]*solana.Transaction
	accounts     map[string]*solana.AccountInfo
	failures     map[string]error

	calls map[string]int
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		transactions: make(map[string]*solana.Transaction),
		accounts:     make(map[string]*solana.AccountInfo),
		failures:     make(map[string]error),
		calls:        make(map[string]int),
	}
}

// GetTransaction returns a stored transaction or nil.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getTransaction"]++

	if err := c.failures[signature]; err != nil {
		return nil, err
	}
	return c.transactions[signature], nil
}

// GetAccountInfo returns stored account info or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getAccountInfo"]++

	if err := c.failures[pubkey]; err != nil {
		return nil, err
	}
	return c.accounts[pubkey], nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions[tx.Signature] = tx
}

// SetBalance sets the lamports of an account, creating it if absent.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var info solana.AccountInfo
	if prev := c.accounts[pubkey]; prev != nil {
		info = *prev
	}
	info.Lamports = lamports
	c.accounts[pubkey] = &info
}

// AddAccount stores account info for pubkey.
func (c *RPCClient) AddAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[pubkey] = info
}

// Fail makes every call keyed by signature or pubkey return err.
func (c *RPCClient) Fail(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[key] = err
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[method]
}
