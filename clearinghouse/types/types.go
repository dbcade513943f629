// Package types holds the domain entities of the clearinghouse: escrow
// contracts, work submissions, audit events, and the verification descriptor.
// It is framework-agnostic and imports no storage or transport code.
package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contract is an escrow agreement between a buyer agent and a worker agent.
type Contract struct {
	ID                     uuid.UUID       `json:"id"`
	BuyerID                string          `json:"buyer_id"`
	WorkerID               string          `json:"worker_id,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	Status                 Status          `json:"status"`
	Description            string          `json:"description,omitempty"`
	VerificationDescriptor Descriptor      `json:"verification_descriptor"`
	RequirementsSchema     json.RawMessage `json:"requirements_schema,omitempty"`
	MaxRetries             int             `json:"max_retries"`
	RetryCount             int             `json:"retry_count"`
	EscrowWallet           string          `json:"escrow_wallet,omitempty"`
	FundingRef             string          `json:"funding_ref,omitempty"`
	SettlementRef          string          `json:"settlement_ref,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// Submission is work delivered by a worker against a contract. IsValid is nil
// until the submission has been verified.
type Submission struct {
	ID                 uuid.UUID       `json:"id"`
	ContractID         uuid.UUID       `json:"contract_id"`
	Payload            []byte          `json:"payload"`
	SubmittedBy        string          `json:"submitted_by,omitempty"`
	IsValid            *bool           `json:"is_valid,omitempty"`
	VerificationResult json.RawMessage `json:"verification_result,omitempty"`
	SubmittedAt        time.Time       `json:"submitted_at"`
}

// Event is one row of the append-only audit log. OldStatus is nil only for
// the CONTRACT_CREATED event.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	ContractID uuid.UUID              `json:"contract_id"`
	EventType  EventType              `json:"event_type"`
	OldStatus  *Status                `json:"old_status,omitempty"`
	NewStatus  Status                 `json:"new_status"`
	Actor      string                 `json:"actor"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// StatusReport is the lightweight status view returned by the escrow service.
type StatusReport struct {
	ContractID    uuid.UUID         `json:"contract_id"`
	Status        Status            `json:"status"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
	AllowedEvents []TransitionEvent `json:"allowed_events"`
}
