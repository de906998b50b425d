package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

const ledgerTxColumns = `id, transaction_hash, document_id, network, block_number, block_timestamp, status,
	transaction_type, simulated, payload, created_at, updated_at`

// LedgerTransactionRepository - локальный журнал транзакций реестра.
// Записи не удаляются; после создания меняются только статус и поля блока.
type LedgerTransactionRepository interface {
	// Create сохраняет транзакцию. Повтор transaction_hash возвращает ErrTransactionExists.
	Create(ctx context.Context, tx *models.LedgerTransaction) error
	// FindByDocumentAndType возвращает самую раннюю транзакцию заданного типа для документа.
	FindByDocumentAndType(
		ctx context.Context,
		documentID uuid.UUID,
		txType models.LedgerTxType,
	) (*models.LedgerTransaction, error)
	GetByHash(ctx context.Context, hash string) (*models.LedgerTransaction, error)
	// UpdateStatusByHash обновляет статус и данные блока по ключу transaction_hash.
	UpdateStatusByHash(
		ctx context.Context,
		hash string,
		status models.LedgerTxStatus,
		blockNumber *int64,
		blockTimestamp *time.Time,
	) error
	// ListByDocument возвращает транзакции документа в порядке создания.
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.LedgerTransaction, error)
}

type postgresLedgerTransactionRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewPostgresLedgerTransactionRepository создает репозиторий транзакций реестра.
func NewPostgresLedgerTransactionRepository(db *sqlx.DB, logger *zap.Logger) LedgerTransactionRepository {
	return &postgresLedgerTransactionRepository{db: db, log: logger.With(zap.String("component", "ledger_tx_repo"))}
}

func (r *postgresLedgerTransactionRepository) Create(ctx context.Context, tx *models.LedgerTransaction) error {
	query := `INSERT INTO ledger_transactions (transaction_hash, document_id, network, block_number, block_timestamp,
	          status, transaction_type, simulated, payload)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
	          RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		tx.TransactionHash, tx.DocumentID, tx.Network, tx.BlockNumber, tx.BlockTimestamp,
		tx.Status, tx.Type, tx.Simulated, jsonParam(tx.Payload),
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			r.log.Warn("Транзакция с таким хешем уже существует", zap.String("tx_hash", tx.TransactionHash))
			return ErrTransactionExists
		}
		r.log.Error("Ошибка сохранения транзакции", zap.String("tx_hash", tx.TransactionHash), zap.Error(err))
		return fmt.Errorf("ошибка выполнения запроса на создание транзакции: %w", err)
	}

	r.log.Info("Транзакция сохранена",
		zap.String("tx_hash", tx.TransactionHash),
		zap.String("type", string(tx.Type)),
		zap.Bool("simulated", tx.Simulated),
	)
	return nil
}

func (r *postgresLedgerTransactionRepository) FindByDocumentAndType(
	ctx context.Context,
	documentID uuid.UUID,
	txType models.LedgerTxType,
) (*models.LedgerTransaction, error) {
	query := `SELECT ` + ledgerTxColumns + ` FROM ledger_transactions
	          WHERE document_id=$1 AND transaction_type=$2 AND status <> 'failed'
	          ORDER BY id LIMIT 1`
	return r.getOne(ctx, query, documentID, txType)
}

func (r *postgresLedgerTransactionRepository) GetByHash(
	ctx context.Context,
	hash string,
) (*models.LedgerTransaction, error) {
	query := `SELECT ` + ledgerTxColumns + ` FROM ledger_transactions WHERE transaction_hash=$1`
	return r.getOne(ctx, query, hash)
}

func (r *postgresLedgerTransactionRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*models.LedgerTransaction, error) {
	var tx models.LedgerTransaction
	if err := r.db.GetContext(ctx, &tx, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		r.log.Error("Ошибка при поиске транзакции", zap.Error(err))
		return nil, fmt.Errorf("ошибка выполнения запроса на получение транзакции: %w", err)
	}
	return &tx, nil
}

func (r *postgresLedgerTransactionRepository) UpdateStatusByHash(
	ctx context.Context,
	hash string,
	status models.LedgerTxStatus,
	blockNumber *int64,
	blockTimestamp *time.Time,
) error {
	query := `UPDATE ledger_transactions SET
	              status = $2,
	              block_number = COALESCE($3, block_number),
	              block_timestamp = COALESCE($4, block_timestamp),
	              updated_at = NOW()
	          WHERE transaction_hash = $1`

	res, err := r.db.ExecContext(ctx, query, hash, status, blockNumber, blockTimestamp)
	if err != nil {
		r.log.Error("Ошибка обновления статуса транзакции", zap.String("tx_hash", hash), zap.Error(err))
		return fmt.Errorf("ошибка выполнения запроса на обновление транзакции: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества обновленных строк: %w", err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *postgresLedgerTransactionRepository) ListByDocument(
	ctx context.Context,
	documentID uuid.UUID,
) ([]models.LedgerTransaction, error) {
	query := `SELECT ` + ledgerTxColumns + ` FROM ledger_transactions WHERE document_id=$1 ORDER BY id`
	txs := make([]models.LedgerTransaction, 0)

	if err := r.db.SelectContext(ctx, &txs, query, documentID); err != nil {
		r.log.Error("Ошибка получения истории транзакций", zap.Stringer("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("ошибка выполнения запроса на получение истории транзакций: %w", err)
	}
	return txs, nil
}

// Ошибки репозитория транзакций.
var (
	ErrTransactionNotFound = errors.New("транзакция не найдена")
	ErrTransactionExists   = errors.New("транзакция с таким хешем уже существует")
)
