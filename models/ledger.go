package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LedgerTxStatus - статус транзакции в реестре.
type LedgerTxStatus string

const (
	TxStatusPending   LedgerTxStatus = "pending"
	TxStatusConfirmed LedgerTxStatus = "confirmed"
	TxStatusFailed    LedgerTxStatus = "failed"
)

// LedgerTxType - тип транзакции в реестре.
type LedgerTxType string

const (
	TxTypeRegistration LedgerTxType = "DOCUMENT_REGISTRATION"
	TxTypeStateUpdate  LedgerTxType = "STATE_UPDATE"
)

// LedgerTransaction - локальная запись о взаимодействии с реестром.
// После создания меняются только статус и поля блока (по ключу transaction_hash).
type LedgerTransaction struct {
	ID              int64           `db:"id" json:"id"`
	TransactionHash string          `db:"transaction_hash" json:"transaction_hash"`
	DocumentID      uuid.UUID       `db:"document_id" json:"document_id"`
	Network         string          `db:"network" json:"network"`
	BlockNumber     *int64          `db:"block_number" json:"block_number,omitempty"`
	BlockTimestamp  *time.Time      `db:"block_timestamp" json:"block_timestamp,omitempty"`
	Status          LedgerTxStatus  `db:"status" json:"status"`
	Type            LedgerTxType    `db:"transaction_type" json:"transaction_type"`
	Simulated       bool            `db:"simulated" json:"simulated"`
	Payload         json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// LedgerOutcome - результат операции шлюза реестра.
// Simulated=true означает, что транзакция синтезирована локально (реестр недоступен).
type LedgerOutcome struct {
	Success     bool           `json:"success"`
	TxID        string         `json:"transaction_id,omitempty"`
	BlockNumber *int64         `json:"block_number,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Simulated   bool           `json:"simulated"`
	Network     string         `json:"network,omitempty"`
	Status      LedgerTxStatus `json:"status,omitempty"`
	Error       string         `json:"error,omitempty"`
}
