package node

import (
	"context"
	"encoding/json"

	"github.com/prysmaticlabs/clearinghouse/clearinghouse/escrow"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/flags"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// runSimulation drives one contract through the full lifecycle with the mock
// verifier and the simulated payment adapter. With --simulate-fail the mock
// rejects every submission, so the run walks the retry path down to FAILED.
func (n *Clearinghouse) runSimulation(ctx context.Context) error {
	shouldFail := n.cliCtx.Bool(flags.SimulateFailFlag.Name)
	shouldPass := !shouldFail

	contract, err := n.escrow.CreateContract(ctx, &escrow.CreateContractRequest{
		BuyerID:     "sim-buyer",
		Amount:      decimal.NewFromFloat(10.50),
		Description: "Simulated task: summarize the attached report",
		Descriptor: types.Descriptor{
			Type:       types.VerifierMock,
			ShouldPass: &shouldPass,
		},
	})
	if err != nil {
		return err
	}
	if _, err := n.escrow.FundContract(ctx, contract.ID); err != nil {
		return err
	}
	if _, err := n.escrow.AcceptContract(ctx, contract.ID, "sim-worker"); err != nil {
		return err
	}

	payload := []byte(`{"summary": "The report describes quarterly results."}`)
	final := contract
	for {
		outcome, err := n.workflow.SubmitAndVerify(ctx, contract.ID, payload, "sim-worker")
		if err != nil {
			return err
		}
		final = outcome.Contract
		if final.Status.Terminal() {
			if outcome.SettlementRef != "" {
				log.WithField("settlementRef", outcome.SettlementRef).Info("Simulated payout settled")
			}
			break
		}
	}

	events, err := n.escrow.GetEvents(ctx, contract.ID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		md, err := json.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"eventType": ev.EventType,
			"newStatus": ev.NewStatus,
			"actor":     ev.Actor,
			"metadata":  string(md),
		}).Info("Audit event")
	}
	log.WithFields(logrus.Fields{
		"contractID":  contract.ID,
		"finalStatus": final.Status,
		"retryCount":  final.RetryCount,
	}).Info("Simulation complete")
	return nil
}
