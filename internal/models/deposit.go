package models

import "time"

// DepositClaim is the ephemeral per-user deposit session. The spendable
// ledger state (pending_deposit, deposit_total) lives on the Account; the
// claim only tracks the conversational phase and the submitted proof.
type DepositClaim struct {
	ClaimID     string      `json:"claim_id"`
	UserID      string      `json:"user_id"`
	Amount      int64       `json:"amount"`
	ProofFileID string      `json:"proof_file_id"`
	Status      ClaimStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

type ClaimStatus string

const (
	ClaimStatusAwaitingAmount  ClaimStatus = "awaiting_amount"
	ClaimStatusAwaitingProof   ClaimStatus = "awaiting_proof"
	ClaimStatusPendingApproval ClaimStatus = "pending_approval"
)
