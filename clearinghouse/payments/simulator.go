package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "payments")

// Simulator is a deterministic in-process payment adapter. It mints fake
// wallet addresses and transaction references so the full lifecycle can run
// without touching a chain.
type Simulator struct{}

// NewSimulator creates a simulated payment adapter.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// CreateEscrowWallet returns a fake wallet address.
func (s *Simulator) CreateEscrowWallet(_ context.Context) (string, error) {
	addr := "0x" + strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")[:40]
	log.WithField("address", addr).Debug("Created simulated escrow wallet")
	return addr, nil
}

// ConfirmFunding returns a fake funding transaction reference.
func (s *Simulator) ConfirmFunding(_ context.Context, escrowWallet string, amount decimal.Decimal, buyerID string) (string, error) {
	ref := fakeTxRef()
	log.WithFields(logrus.Fields{
		"ref":    ref,
		"amount": amount.String(),
		"from":   buyerID,
		"to":     escrowWallet,
	}).Debug("Simulated funding confirmation")
	return ref, nil
}

// TransferToWorker returns a fake settlement transaction reference.
func (s *Simulator) TransferToWorker(_ context.Context, escrowWallet, workerID string, amount decimal.Decimal) (string, error) {
	ref := fakeTxRef()
	log.WithFields(logrus.Fields{
		"ref":    ref,
		"amount": amount.String(),
		"from":   escrowWallet,
		"to":     workerID,
	}).Debug("Simulated settlement transfer")
	return ref, nil
}

func fakeTxRef() string {
	a := strings.ReplaceAll(uuid.New().String(), "-", "")
	b := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "0x" + a + b[:32]
}
