package payments

import (
	"context"
	"strings"
	"testing"

	"github.com/prysmaticlabs/clearinghouse/shared/testutil/assert"
	"github.com/prysmaticlabs/clearinghouse/shared/testutil/require"
	"github.com/shopspring/decimal"
)

func TestSimulator_WalletFormat(t *testing.T) {
	s := NewSimulator()
	addr, err := s.CreateEscrowWallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, strings.HasPrefix(addr, "0x"))
	assert.Equal(t, 42, len(addr))

	other, err := s.CreateEscrowWallet(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)
}

func TestSimulator_TxRefs(t *testing.T) {
	s := NewSimulator()
	ctx := context.Background()
	amount := decimal.NewFromFloat(12.34)

	fundingRef, err := s.ConfirmFunding(ctx, "0xescrow", amount, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, true, strings.HasPrefix(fundingRef, "0x"))
	assert.Equal(t, 66, len(fundingRef))

	settlementRef, err := s.TransferToWorker(ctx, "0xescrow", "worker-1", amount)
	require.NoError(t, err)
	assert.Equal(t, 66, len(settlementRef))
	assert.NotEqual(t, fundingRef, settlementRef)
}
