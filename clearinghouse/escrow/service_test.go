package escrow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	dbtesting "github.com/prysmaticlabs/clearinghouse/clearinghouse/db/testing"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/escrow"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verify"
	"github.com/prysmaticlabs/clearinghouse/shared/testutil/assert"
	"github.com/prysmaticlabs/clearinghouse/shared/testutil/require"
	"github.com/shopspring/decimal"
)

// fakeAdapter scripts payment outcomes per operation.
type fakeAdapter struct {
	walletErr   error
	fundErr     error
	transferErr error

	walletCalls   int
	transferCalls int
}

func (f *fakeAdapter) CreateEscrowWallet(_ context.Context) (string, error) {
	f.walletCalls++
	if f.walletErr != nil {
		return "", f.walletErr
	}
	return "0xescrow", nil
}

func (f *fakeAdapter) ConfirmFunding(_ context.Context, _ string, _ decimal.Decimal, _ string) (string, error) {
	if f.fundErr != nil {
		return "", f.fundErr
	}
	return "0xfunding", nil
}

func (f *fakeAdapter) TransferToWorker(_ context.Context, _, _ string, _ decimal.Decimal) (string, error) {
	f.transferCalls++
	if f.transferErr != nil {
		return "", f.transferErr
	}
	return "0xsettlement", nil
}

func setupService(t *testing.T) (*escrow.Service, *fakeAdapter) {
	adapter := &fakeAdapter{}
	return escrow.NewService(dbtesting.SetupDB(t), adapter), adapter
}

func createRequest() *escrow.CreateContractRequest {
	return &escrow.CreateContractRequest{
		BuyerID:     "buyer-1",
		Amount:      decimal.NewFromFloat(50.00),
		Description: "Transcribe the meeting recording",
		Descriptor:  types.Descriptor{Type: types.VerifierMock},
	}
}

func passedResult() *verify.Result {
	score := 1.0
	return &verify.Result{IsValid: true, Score: &score, Details: "looks good"}
}

func failedResult() *verify.Result {
	score := 0.0
	return &verify.Result{IsValid: false, Score: &score, Details: "output mismatch"}
}

// advance drives a fresh contract to the requested status.
func advance(t *testing.T, svc *escrow.Service, req *escrow.CreateContractRequest, target types.Status) *types.Contract {
	ctx := context.Background()
	c, err := svc.CreateContract(ctx, req)
	require.NoError(t, err)
	if target == types.StatusCreated {
		return c
	}
	c, err = svc.FundContract(ctx, c.ID)
	require.NoError(t, err)
	if target == types.StatusFunded {
		return c
	}
	c, err = svc.AcceptContract(ctx, c.ID, "worker-1")
	require.NoError(t, err)
	if target == types.StatusInProgress {
		return c
	}
	_, err = svc.SubmitWork(ctx, c.ID, []byte(`{"transcript": "..."}`), "worker-1")
	require.NoError(t, err)
	c, err = svc.GetContract(ctx, c.ID)
	require.NoError(t, err)
	if target == types.StatusSubmitted {
		return c
	}
	c, err = svc.StartVerification(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusVerifying, c.Status)
	return c
}

func TestCreateContract(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.CreateContract(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, types.StatusCreated, c.Status)
	assert.Equal(t, 3, c.MaxRetries, "expected configured default retry budget")
	assert.NotEqual(t, uuid.Nil, c.ID)

	events, err := svc.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, len(events))
	assert.Equal(t, types.EventContractCreated, events[0].EventType)
	assert.Equal(t, (*types.Status)(nil), events[0].OldStatus)
	assert.Equal(t, "buyer-1", events[0].Actor)
}

func TestCreateContract_Validation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := createRequest()
	req.BuyerID = ""
	_, err := svc.CreateContract(ctx, req)
	require.ErrorContains(t, "buyer id is required", err)

	req = createRequest()
	req.Amount = decimal.Zero
	_, err = svc.CreateContract(ctx, req)
	require.ErrorContains(t, "must be positive", err)

	req = createRequest()
	req.Descriptor = types.Descriptor{}
	_, err = svc.CreateContract(ctx, req)
	require.ErrorContains(t, "must contain a type", err)
}

func TestCreateContract_IdempotencyKey(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := createRequest()
	req.IdempotencyKey = "create-task-7"
	first, err := svc.CreateContract(ctx, req)
	require.NoError(t, err)

	_, err = svc.CreateContract(ctx, req)
	require.ErrorContains(t, "duplicate operation detected", err)
	var dup *types.DuplicateOperationError
	require.Equal(t, true, errors.As(err, &dup))
	original, ok := dup.Result.(*types.Contract)
	require.Equal(t, true, ok)
	assert.Equal(t, first.ID, original.ID)
}

func TestFundContract(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.CreateContract(ctx, createRequest())
	require.NoError(t, err)
	funded, err := svc.FundContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFunded, funded.Status)
	assert.Equal(t, "0xescrow", funded.EscrowWallet)
	assert.Equal(t, "0xfunding", funded.FundingRef)

	events, err := svc.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, len(events))
	assert.Equal(t, types.EventContractFunded, events[1].EventType)
	assert.Equal(t, "0xfunding", events[1].Metadata["funding_ref"])
}

func TestFundContract_IllegalState_NoWalletProvisioned(t *testing.T) {
	svc, adapter := setupService(t)
	ctx := context.Background()

	c := advance(t, svc, createRequest(), types.StatusFunded)
	walletCallsBefore := adapter.walletCalls
	_, err := svc.FundContract(ctx, c.ID)
	require.ErrorContains(t, "illegal transition", err)
	assert.Equal(t, walletCallsBefore, adapter.walletCalls, "no wallet may be provisioned for an unfundable contract")
}

func TestFundContract_PaymentFailure(t *testing.T) {
	svc, adapter := setupService(t)
	ctx := context.Background()
	adapter.fundErr = errors.New("insufficient balance")

	c, err := svc.CreateContract(ctx, createRequest())
	require.NoError(t, err)
	_, err = svc.FundContract(ctx, c.ID)
	var pay *types.PaymentError
	require.Equal(t, true, errors.As(err, &pay))
	assert.Equal(t, "confirm_funding", pay.Op)

	// The contract remains CREATED and no funding event was recorded.
	got, err := svc.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCreated, got.Status)
	events, err := svc.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, len(events))
}

func TestAcceptContract(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c := advance(t, svc, createRequest(), types.StatusFunded)
	accepted, err := svc.AcceptContract(ctx, c.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, accepted.Status)
	assert.Equal(t, "worker-1", accepted.WorkerID)
}

func TestAcceptContract_WorkerAlreadyAssigned(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c := advance(t, svc, createRequest(), types.StatusInProgress)
	_, err := svc.AcceptContract(ctx, c.ID, "worker-2")
	var assigned *types.WorkerAlreadyAssignedError
	require.Equal(t, true, errors.As(err, &assigned))
	assert.Equal(t, "worker-1", assigned.WorkerID)

	// The original assignment is untouched.
	got, err := svc.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", got.WorkerID)
}

func TestSubmitWork(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c := advance(t, svc, createRequest(), types.StatusInProgress)
	sub, err := svc.SubmitWork(ctx, c.ID, []byte(`{"transcript": "hello"}`), "")
	require.NoError(t, err)
	assert.Equal(t, "worker-1", sub.SubmittedBy, "actor defaults to the assigned worker")

	got, err := svc.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSubmitted, got.Status)
}

func TestSubmitWork_IllegalFromCreated(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.CreateContract(ctx, createRequest())
	require.NoError(t, err)
	_, err = svc.SubmitWork(ctx, c.ID, []byte("{}"), "worker-1")
	require.ErrorContains(t, "illegal transition", err)

	// The rejected submission left no trace: status and events are unchanged.
	got, err := svc.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCreated, got.Status)
	events, err := svc.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, len(events))
}

func TestRecordVerificationPassed(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c := advance(t, svc, createRequest(), types.StatusVerifying)
	updated, err := svc.RecordVerificationPassed(ctx, c.ID, passedResult())
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, updated.Status)

	events, err := svc.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, types.EventVerificationPassed, last.EventType)
	assert.Equal(t, true, last.Metadata["is_valid"])
}

func TestRecordVerificationFailed_RetryThenFailed(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := createRequest()
	req.MaxRetries = 2
	c := advance(t, svc, req, types.StatusVerifying)

	// First failure: retry budget remains, back to IN_PROGRESS.
	updated, err := svc.RecordVerificationFailed(ctx, c.ID, failedResult())
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, updated.Status)
	assert.Equal(t, 1, updated.RetryCount)

	// Second failure: the post-increment count reaches the budget, FAILED.
	_, err = svc.SubmitWork(ctx, c.ID, []byte("{}"), "worker-1")
	require.NoError(t, err)
	_, err = svc.StartVerification(ctx, c.ID)
	require.NoError(t, err)
	updated, err = svc.RecordVerificationFailed(ctx, c.ID, failedResult())
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, updated.Status)
	assert.Equal(t, 2, updated.RetryCount)

	events, err := svc.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, types.EventMaxRetriesExceeded, last.EventType)
}

func TestRecordVerificationFailed_SingleAttemptBudget(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := createRequest()
	req.MaxRetries = 1
	c := advance(t, svc, req, types.StatusVerifying)

	// The counter increments before the terminal decision, so the very first
	// failure exhausts a budget of one.
	updated, err := svc.RecordVerificationFailed(ctx, c.ID, failedResult())
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, updated.Status)
	assert.Equal(t, 1, updated.RetryCount)
}

func TestDisputeFlow(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c := advance(t, svc, createRequest(), types.StatusInProgress)
	disputed, err := svc.RaiseDispute(ctx, c.ID, "work is late", "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDisputed, disputed.Status)

	resolved, err := svc.ResolveDisputeForBuyer(ctx, c.ID, "worker unresponsive")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, resolved.Status)

	events, err := svc.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, types.EventDisputeResolvedBuyer, last.EventType)
	assert.Equal(t, "worker unresponsive", last.Metadata["resolution"])
}

func TestDisputeFromFunded_ResolvesForWorkerWithoutSubmission(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c := advance(t, svc, createRequest(), types.StatusFunded)
	_, err := svc.RaiseDispute(ctx, c.ID, "buyer changed their mind", "buyer-1")
	require.NoError(t, err)
	resolved, err := svc.ResolveDisputeForWorker(ctx, c.ID, "contract terms favor the worker")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, resolved.Status)
}

func TestExpireContract(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.CreateContract(ctx, createRequest())
	require.NoError(t, err)
	expired, err := svc.ExpireContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, expired.Status)

	events, err := svc.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.EventContractExpired, events[len(events)-1].EventType)
}

func TestSettle(t *testing.T) {
	svc, adapter := setupService(t)
	ctx := context.Background()

	c := advance(t, svc, createRequest(), types.StatusVerifying)
	_, err := svc.RecordVerificationPassed(ctx, c.ID, passedResult())
	require.NoError(t, err)

	ref, err := svc.Settle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "0xsettlement", ref)

	// Settling again returns the stored ref without another transfer.
	again, err := svc.Settle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ref, again)
	assert.Equal(t, 1, adapter.transferCalls)

	// Settlement appends nothing to the audit trail: VERIFICATION_PASSED
	// stays the final event.
	events, err := svc.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.EventVerificationPassed, events[len(events)-1].EventType)
}

func TestSettle_PaymentFailureLeavesCompleted(t *testing.T) {
	svc, adapter := setupService(t)
	ctx := context.Background()
	adapter.transferErr = errors.New("chain congestion")

	c := advance(t, svc, createRequest(), types.StatusVerifying)
	_, err := svc.RecordVerificationPassed(ctx, c.ID, passedResult())
	require.NoError(t, err)

	_, err = svc.Settle(ctx, c.ID)
	var pay *types.PaymentError
	require.Equal(t, true, errors.As(err, &pay))
	assert.Equal(t, "transfer_to_worker", pay.Op)

	got, err := svc.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.Equal(t, "", got.SettlementRef)
}

func TestSettle_RequiresCompleted(t *testing.T) {
	svc, _ := setupService(t)
	c := advance(t, svc, createRequest(), types.StatusInProgress)
	_, err := svc.Settle(context.Background(), c.ID)
	require.ErrorContains(t, "cannot settle contract", err)
}

func TestGetStatus(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	c := advance(t, svc, createRequest(), types.StatusFunded)
	report, err := svc.GetStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFunded, report.Status)
	require.DeepEqual(t, []types.TransitionEvent{
		types.EvBuyerDisputes,
		types.EvWorkerAccepts,
	}, report.AllowedEvents)
}

func TestGetContract_NotFound(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.GetContract(context.Background(), uuid.New())
	var notFound *types.ContractNotFoundError
	require.Equal(t, true, errors.As(err, &notFound))
	assert.Equal(t, types.CodeContractNotFound, notFound.Code())
}
