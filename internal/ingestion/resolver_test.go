package ingestion

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpguard/internal/domain"
	"pumpguard/internal/solana"
	"pumpguard/internal/solana/stub"
)

const (
	testMint   = "So11111111111111111111111111111111111111112"
	testWallet = "Wa11et1111111111111111111111111111111111111"
)

func newTestResolver(rpc solana.RPCClient) *Resolver {
	return NewResolver(rpc,
		WithSettleDelays(0, 0),
		WithResolverClock(func() int64 { return 1_700_000_000_000 }),
	)
}

// tradeTx builds a transaction where the fee payer moves lamports and tokens.
func tradeTx(sig string, preLamports, postLamports uint64, preAmount, postAmount string) *solana.Transaction {
	tx := &solana.Transaction{
		Signature: sig,
		Message: &solana.TransactionMessage{AccountKeys: []solana.AccountKey{
			{Pubkey: testWallet, Signer: true, Writable: true},
			{Pubkey: "Curve111", Writable: true},
		}},
		Meta: &solana.TransactionMeta{
			PreBalances:  []uint64{preLamports, 0},
			PostBalances: []uint64{postLamports, 0},
		},
	}
	if preAmount != "" {
		tx.Meta.PreTokenBalances = []solana.TokenBalance{{AccountIndex: 2, Mint: testMint, Owner: testWallet, Amount: preAmount, Decimals: 6}}
	}
	if postAmount != "" {
		tx.Meta.PostTokenBalances = []solana.TokenBalance{{AccountIndex: 2, Mint: testMint, Owner: testWallet, Amount: postAmount, Decimals: 6}}
	}
	return tx
}

func TestResolveMovement_Buy(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(tradeTx("buy1", 10_000_000_000, 7_500_000_000, "", "1500000000"))

	m := newTestResolver(rpc).ResolveMovement(context.Background(), "buy1", domain.DirectionBuy)
	require.NotNil(t, m)
	assert.Equal(t, testWallet, m.Wallet)
	assert.Equal(t, testMint, m.Mint)
	assert.Equal(t, domain.DirectionBuy, m.Direction)
	assert.InDelta(t, 2.5, m.AmountNative, 1e-9)
	assert.InDelta(t, 1500.0, m.AmountToken, 1e-9)
	assert.Equal(t, int64(1_700_000_000_000), m.ObservedAt)
}

func TestResolveMovement_SellUsesPreBalances(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(tradeTx("sell1", 1_000_000_000, 41_000_000_000, "250000000000000", "50000000000000"))

	m := newTestResolver(rpc).ResolveMovement(context.Background(), "sell1", domain.DirectionSell)
	require.NotNil(t, m)
	assert.Equal(t, testMint, m.Mint)
	assert.InDelta(t, 40.0, m.AmountNative, 1e-9)
	assert.InDelta(t, 200_000_000.0, m.AmountToken, 1e-6)
}

func TestResolveMovement_Misses(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Fail("boom", errors.New("rpc down"))
	noSigner := tradeTx("nosigner", 1, 2, "", "1")
	noSigner.Message.AccountKeys[0].Signer = false
	rpc.AddTransaction(noSigner)
	rpc.AddTransaction(tradeTx("nomint", 1, 2, "", ""))

	r := newTestResolver(rpc)
	ctx := context.Background()

	assert.Nil(t, r.ResolveMovement(ctx, "unknown", domain.DirectionBuy))
	assert.Nil(t, r.ResolveMovement(ctx, "boom", domain.DirectionBuy))
	assert.Nil(t, r.ResolveMovement(ctx, "nosigner", domain.DirectionBuy))
	assert.Nil(t, r.ResolveMovement(ctx, "nomint", domain.DirectionBuy))
}

func TestResolveMovement_SettleDelayHonorsContext(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(tradeTx("buy1", 2, 1, "", "1"))
	r := NewResolver(rpc, WithSettleDelays(time.Hour, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Nil(t, r.ResolveMovement(ctx, "buy1", domain.DirectionBuy))
	assert.Equal(t, 0, rpc.Calls("getTransaction"))
}

func TestResolveLaunch_FromLogs(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(tradeTx("create1", 5_000_000_000, 3_000_000_000, "", "1000"))

	logs := []string{
		"Program log: Instruction: Create",
		"Program log: name: Moon Dog",
		"Program log: symbol: MDOG",
	}
	l := newTestResolver(rpc).ResolveLaunch(context.Background(), "create1", logs)
	require.NotNil(t, l)
	assert.Equal(t, testMint, l.Mint)
	assert.Equal(t, testWallet, l.Creator)
	assert.Equal(t, "Moon Dog", l.Name)
	assert.Equal(t, "MDOG", l.Symbol)
	assert.InDelta(t, 2.0, l.InitialLiquidity, 1e-9)
	assert.Equal(t, float64(domain.DefaultTotalSupply), l.TotalSupply)
	assert.Equal(t, 0, rpc.Calls("getAccountInfo"))
}

func TestResolveLaunch_MetadataFallback(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(tradeTx("create1", 5_000_000_000, 3_000_000_000, "", "1000"))

	addr, err := solana.MetadataAddress(testMint)
	require.NoError(t, err)
	rpc.AddAccount(addr, &solana.AccountInfo{Data: metadataAccount("Fallback", "FBK")})

	l := newTestResolver(rpc).ResolveLaunch(context.Background(), "create1", []string{"Program log: Instruction: Create"})
	require.NotNil(t, l)
	assert.Equal(t, "Fallback", l.Name)
	assert.Equal(t, "FBK", l.Symbol)
}

func TestResolveLaunch_Defaults(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(tradeTx("create1", 5, 5, "", "1000"))

	l := newTestResolver(rpc).ResolveLaunch(context.Background(), "create1", nil)
	require.NotNil(t, l)
	assert.Equal(t, "Unknown", l.Name)
	assert.Equal(t, "UNK", l.Symbol)
	assert.Zero(t, l.InitialLiquidity)
}

func TestResolveLiquidityChange(t *testing.T) {
	rpc := stub.NewRPCClient()
	tx := tradeTx("lp1", 100_000_000_000, 40_000_000_000, "10", "")
	tx.Meta.PreTokenBalances = append(tx.Meta.PreTokenBalances,
		solana.TokenBalance{Mint: testMint, Owner: "Pool", Amount: "5"},
		solana.TokenBalance{Mint: "OtherMint", Owner: "Pool", Amount: "5"},
	)
	rpc.AddTransaction(tx)

	gain := tradeTx("lp2", 1_000_000_000, 3_000_000_000, "10", "")
	rpc.AddTransaction(gain)

	r := newTestResolver(rpc)

	c := r.ResolveLiquidityChange(context.Background(), "lp1")
	require.NotNil(t, c)
	assert.Equal(t, []string{testMint, "OtherMint"}, c.Mints)
	assert.InDelta(t, 60.0, c.NativeRemoved, 1e-9)

	c = r.ResolveLiquidityChange(context.Background(), "lp2")
	require.NotNil(t, c)
	assert.InDelta(t, -2.0, c.NativeRemoved, 1e-9)

	assert.Nil(t, r.ResolveLiquidityChange(context.Background(), "missing"))
}

func TestNameAndSymbol(t *testing.T) {
	name, symbol := nameAndSymbol([]string{
		"Program log: name: First",
		"Program log: symbol:  SYM ",
		"Program log: name: Second",
	})
	assert.Equal(t, "Second", name)
	assert.Equal(t, "SYM", symbol)
}

func metadataAccount(name, symbol string) string {
	str := func(s string) []byte {
		out := make([]byte, 4+len(s))
		binary.LittleEndian.PutUint32(out, uint32(len(s)))
		copy(out[4:], s)
		return out
	}
	buf := make([]byte, 65)
	buf[0] = 4
	buf = append(buf, str(name)...)
	buf = append(buf, str(symbol)...)
	buf = append(buf, str("")...)
	return base64.StdEncoding.EncodeToString(buf)
}
