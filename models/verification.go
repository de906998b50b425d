package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// VerificationMethod - способ проверки документа.
type VerificationMethod string

const (
	MethodMultiFactor VerificationMethod = "MULTI_FACTOR"
	MethodBlockchain  VerificationMethod = "BLOCKCHAIN_VERIFICATION"
	MethodBulk        VerificationMethod = "BULK_VERIFICATION"
)

// Причины отрицательного вердикта.
const (
	ReasonRevoked           = "REVOKED"
	ReasonNotRegistered     = "NOT_REGISTERED"
	ReasonFileMismatch      = "FILE_MISMATCH"
	ReasonFileUnreadable    = "FILE_UNREADABLE"
	ReasonLedgerUnconfirmed = "LEDGER_UNCONFIRMED"
	ReasonLedgerUnavailable = "LEDGER_UNAVAILABLE"
)

// Аннотации проверки файла.
const (
	FileCheckVerified      = "VERIFIED"
	FileCheckMismatch      = "MISMATCH"
	FileCheckSkipped       = "SKIPPED"
	FileCheckUnreadable    = "UNREADABLE"
	FileCheckNotApplicable = "NOT_APPLICABLE"
)

// VerificationRecord - запись журнала проверок. Только добавляется, не меняется и не удаляется.
type VerificationRecord struct {
	ID                 int64              `db:"id" json:"id"`
	DocumentID         uuid.UUID          `db:"document_id" json:"document_id"`
	VerifierID         *int64             `db:"verifier_id" json:"verifier_id,omitempty"`
	Verified           bool               `db:"verified" json:"verified"`
	Method             VerificationMethod `db:"verification_method" json:"verification_method"`
	Details            string             `db:"details" json:"details"`
	ComplianceMetadata json.RawMessage    `db:"compliance_metadata" json:"compliance_metadata,omitempty"`
	Jurisdiction       *string            `db:"jurisdiction" json:"jurisdiction,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
}

// FileCheck - результат проверки локального содержимого.
type FileCheck struct {
	Verified     bool   `json:"verified"`
	Annotation   string `json:"annotation"`
	Algorithm    string `json:"algorithm,omitempty"`
	ExpectedHash string `json:"expected_hash,omitempty"`
	CurrentHash  string `json:"current_hash,omitempty"`
	Error        string `json:"error,omitempty"`
}

// VerificationOutcome - итог проверки документа.
type VerificationOutcome struct {
	DocumentID uuid.UUID          `json:"document_id"`
	Verified   bool               `json:"verified"`
	Reason     string             `json:"reason,omitempty"`
	Status     DocumentStatus     `json:"status"`
	Method     VerificationMethod `json:"method"`
	File       FileCheck          `json:"file"`
	Ledger     *LedgerOutcome     `json:"ledger,omitempty"`
	RecordID   int64              `json:"record_id"`
	VerifiedAt time.Time          `json:"verified_at"`
}

// BulkItem - результат проверки одного документа в пакете.
type BulkItem struct {
	DocumentID string               `json:"document_id"`
	Outcome    *VerificationOutcome `json:"outcome,omitempty"`
	Error      string               `json:"error,omitempty"`
	ErrorCode  string               `json:"error_code,omitempty"`
}

// BulkSummary - сводка по пакетной проверке.
type BulkSummary struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Failed   int `json:"failed"`
}

// BulkResult - результат пакетной проверки.
type BulkResult struct {
	Results []BulkItem  `json:"results"`
	Summary BulkSummary `json:"summary"`
}
