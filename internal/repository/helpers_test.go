package repository_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// Вспомогательная функция для создания мока БД.
func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var documentColumnNames = []string{
	"id", "owner_id", "title", "original_filename", "file_type", "file_size", "storage_path", "status",
	"security_level", "hash", "hash_algorithm", "hash_prefix", "blockchain_tx_id", "blockchain_network",
	"is_revoked", "revocation_reason", "revoked_at", "revoked_by", "signatures_required", "expiry_date",
	"created_at", "updated_at",
}

func documentRow(rows *sqlmock.Rows, id uuid.UUID, status string, hash any, revoked bool) *sqlmock.Rows {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var prefix, alg, txID, network any
	if hash != nil {
		prefix = hash.(string)[:16]
		alg = "SHA-256"
		txID = "tx-1"
		network = "docanchor-channel"
	}
	return rows.AddRow(
		id.String(), int64(7), "Договор", "contract.pdf", "application/pdf", int64(1024), "docs/"+id.String(), status,
		"STANDARD", hash, alg, prefix, txID, network,
		revoked, nil, nil, nil, int64(0), nil,
		now, now,
	)
}

var ledgerTxColumnNames = []string{
	"id", "transaction_hash", "document_id", "network", "block_number", "block_timestamp", "status",
	"transaction_type", "simulated", "payload", "created_at", "updated_at",
}
