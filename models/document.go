package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus - состояние жизненного цикла документа.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "UPLOADED"
	StatusRegistered DocumentStatus = "REGISTERED"
	StatusSigned     DocumentStatus = "SIGNED"
	StatusVerified   DocumentStatus = "VERIFIED"
	StatusShared     DocumentStatus = "SHARED"
	StatusRevoked    DocumentStatus = "REVOKED"
)

// Document - запись о документе в локальной системе учета.
// Hash и BlockchainTxID записываются один раз при регистрации и больше не меняются.
// Документы не удаляются физически, только отзываются.
type Document struct {
	ID                 uuid.UUID      `db:"id" json:"id"`
	OwnerID            int64          `db:"owner_id" json:"owner_id"`
	Title              string         `db:"title" json:"title"`
	OriginalFilename   string         `db:"original_filename" json:"original_filename"`
	FileType           string         `db:"file_type" json:"file_type"`
	FileSize           int64          `db:"file_size" json:"file_size"`
	StoragePath        string         `db:"storage_path" json:"-"`
	Status             DocumentStatus `db:"status" json:"status"`
	SecurityLevel      string         `db:"security_level" json:"security_level"`
	Hash               *string        `db:"hash" json:"hash,omitempty"`
	HashAlgorithm      *string        `db:"hash_algorithm" json:"hash_algorithm,omitempty"`
	HashPrefix         *string        `db:"hash_prefix" json:"-"`
	BlockchainTxID     *string        `db:"blockchain_tx_id" json:"blockchain_tx_id,omitempty"`
	BlockchainNetwork  *string        `db:"blockchain_network" json:"blockchain_network,omitempty"`
	IsRevoked          bool           `db:"is_revoked" json:"is_revoked"`
	RevocationReason   *string        `db:"revocation_reason" json:"revocation_reason,omitempty"`
	RevokedAt          *time.Time     `db:"revoked_at" json:"revoked_at,omitempty"`
	RevokedBy          *int64         `db:"revoked_by" json:"revoked_by,omitempty"`
	SignaturesRequired int            `db:"signatures_required" json:"signatures_required"`
	ExpiryDate         *time.Time     `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// Fingerprint возвращает сохраненный отпечаток документа, если он уже задан.
func (d *Document) Fingerprint() (Fingerprint, bool) {
	if d.Hash == nil || *d.Hash == "" {
		return Fingerprint{}, false
	}
	fp := Fingerprint{Hash: *d.Hash}
	if d.HashAlgorithm != nil {
		fp.Algorithm = *d.HashAlgorithm
	}
	return fp, true
}

// TxID возвращает ID транзакции регистрации или пустую строку.
func (d *Document) TxID() string {
	if d.BlockchainTxID == nil {
		return ""
	}
	return *d.BlockchainTxID
}

// Network возвращает сеть, в которой зарегистрирован документ.
func (d *Document) Network() string {
	if d.BlockchainNetwork == nil {
		return ""
	}
	return *d.BlockchainNetwork
}

// Fingerprint - отпечаток содержимого: алгоритм и hex-дайджест.
type Fingerprint struct {
	Algorithm string `json:"algorithm"`
	Hash      string `json:"hash"`
}

// DocumentPatch - набор необязательных полей для частичного обновления документа.
// В UPDATE попадают только заданные (не nil) поля.
type DocumentPatch struct {
	Status           *DocumentStatus
	IsRevoked        *bool
	RevocationReason *string
	RevokedAt        *time.Time
	RevokedBy        *int64
	ExpiryDate       *time.Time
	SecurityLevel    *string
}

// Empty сообщает, что в патче нет ни одного поля.
func (p DocumentPatch) Empty() bool {
	return p.Status == nil && p.IsRevoked == nil && p.RevocationReason == nil &&
		p.RevokedAt == nil && p.RevokedBy == nil && p.ExpiryDate == nil && p.SecurityLevel == nil
}
