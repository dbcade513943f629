// Package payments abstracts the payment rails behind the clearinghouse.
// The core never inspects the returned references beyond storing them.
package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// Adapter is the payment surface the escrow core consumes. Implementations
// may be a real on-chain client or the deterministic simulator in this
// package.
type Adapter interface {
	// CreateEscrowWallet provisions a custodian wallet for one contract.
	CreateEscrowWallet(ctx context.Context) (string, error)
	// ConfirmFunding verifies the buyer's deposit into the escrow wallet and
	// returns an opaque funding reference.
	ConfirmFunding(ctx context.Context, escrowWallet string, amount decimal.Decimal, buyerID string) (string, error)
	// TransferToWorker pays the deposit out to the worker and returns an
	// opaque settlement reference.
	TransferToWorker(ctx context.Context, escrowWallet, workerID string, amount decimal.Decimal) (string, error)
}
