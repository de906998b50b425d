package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

const documentColumns = `id, owner_id, title, original_filename, file_type, file_size, storage_path, status,
	security_level, hash, hash_algorithm, hash_prefix, blockchain_tx_id, blockchain_network, is_revoked,
	revocation_reason, revoked_at, revoked_by, signatures_required, expiry_date, created_at, updated_at`

// DocumentRepository определяет методы для работы с документами.
// Документы не удаляются, поэтому метода удаления нет.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// FindByHash ищет документ по префиксу и полному значению хеша.
	FindByHash(ctx context.Context, fp models.Fingerprint, prefix string) (*models.Document, error)
	// MarkRegistered записывает отпечаток и ID транзакции, если они еще не заданы,
	// и переводит документ из UPLOADED в REGISTERED.
	MarkRegistered(ctx context.Context, id uuid.UUID, fp models.Fingerprint, prefix, txID, network string) error
	// ApplyPatch обновляет заданные поля при условии, что статус документа не изменился.
	ApplyPatch(
		ctx context.Context,
		id uuid.UUID,
		expected models.DocumentStatus,
		patch models.DocumentPatch,
	) (*models.Document, error)
}

// postgresDocumentRepository реализует DocumentRepository для PostgreSQL.
type postgresDocumentRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewPostgresDocumentRepository создает репозиторий документов.
func NewPostgresDocumentRepository(db *sqlx.DB, logger *zap.Logger) DocumentRepository {
	return &postgresDocumentRepository{db: db, log: logger.With(zap.String("component", "document_repo"))}
}

// Create сохраняет новый документ. ID задается вызывающей стороной.
func (r *postgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `INSERT INTO documents (id, owner_id, title, original_filename, file_type, file_size, storage_path,
	          status, security_level, signatures_required, expiry_date)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		doc.ID, doc.OwnerID, doc.Title, doc.OriginalFilename, doc.FileType, doc.FileSize, doc.StoragePath,
		doc.Status, doc.SecurityLevel, doc.SignaturesRequired, doc.ExpiryDate,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		r.log.Error("Ошибка создания документа", zap.Stringer("document_id", doc.ID), zap.Error(err))
		return fmt.Errorf("ошибка выполнения запроса на создание документа: %w", err)
	}

	r.log.Info("Документ создан", zap.Stringer("document_id", doc.ID), zap.Int64("owner_id", doc.OwnerID))
	return nil
}

// GetByID находит документ по ID.
func (r *postgresDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id=$1`
	var doc models.Document

	err := r.db.GetContext(ctx, &doc, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		r.log.Error("Ошибка при поиске документа", zap.Stringer("document_id", id), zap.Error(err))
		return nil, fmt.Errorf("ошибка выполнения запроса на получение документа: %w", err)
	}
	return &doc, nil
}

// FindByHash находит самый ранний документ с указанным отпечатком.
func (r *postgresDocumentRepository) FindByHash(
	ctx context.Context,
	fp models.Fingerprint,
	prefix string,
) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
	          WHERE hash_prefix=$1 AND hash=$2 AND hash_algorithm=$3
	          ORDER BY created_at LIMIT 1`
	var doc models.Document

	err := r.db.GetContext(ctx, &doc, query, prefix, fp.Hash, fp.Algorithm)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		r.log.Error("Ошибка при поиске документа по хешу", zap.String("prefix", prefix), zap.Error(err))
		return nil, fmt.Errorf("ошибка выполнения запроса на поиск документа по хешу: %w", err)
	}
	return &doc, nil
}

// MarkRegistered записывает результат регистрации. Поля hash и blockchain_tx_id
// записываются только один раз: если хеш уже задан и отличается, документ не меняется.
func (r *postgresDocumentRepository) MarkRegistered(
	ctx context.Context,
	id uuid.UUID,
	fp models.Fingerprint,
	prefix, txID, network string,
) error {
	query := `UPDATE documents SET
	              hash = COALESCE(hash, $2),
	              hash_algorithm = COALESCE(hash_algorithm, $3),
	              hash_prefix = COALESCE(hash_prefix, $4),
	              blockchain_tx_id = COALESCE(blockchain_tx_id, $5),
	              blockchain_network = COALESCE(blockchain_network, $6),
	              status = CASE WHEN status = 'UPLOADED' THEN 'REGISTERED' ELSE status END,
	              updated_at = NOW()
	          WHERE id = $1 AND is_revoked = FALSE AND (hash IS NULL OR hash = $2)`

	res, err := r.db.ExecContext(ctx, query, id, fp.Hash, fp.Algorithm, prefix, txID, network)
	if err != nil {
		r.log.Error("Ошибка записи регистрации документа", zap.Stringer("document_id", id), zap.Error(err))
		return fmt.Errorf("ошибка выполнения запроса на регистрацию документа: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества обновленных строк: %w", err)
	}
	if affected == 0 {
		return ErrDocumentConflict
	}
	return nil
}

// ApplyPatch применяет частичное обновление. В UPDATE попадают только заданные поля патча.
// Обновление выполняется только если статус документа равен expected и документ не отозван.
func (r *postgresDocumentRepository) ApplyPatch(
	ctx context.Context,
	id uuid.UUID,
	expected models.DocumentStatus,
	patch models.DocumentPatch,
) (*models.Document, error) {
	query, args, err := buildPatchQuery(id, expected, patch)
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = r.db.GetContext(ctx, &doc, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warn("Документ изменен параллельно или отозван",
				zap.Stringer("document_id", id), zap.String("expected_status", string(expected)))
			return nil, ErrDocumentConflict
		}
		r.log.Error("Ошибка обновления документа", zap.Stringer("document_id", id), zap.Error(err))
		return nil, fmt.Errorf("ошибка выполнения запроса на обновление документа: %w", err)
	}
	return &doc, nil
}

func buildPatchQuery(id uuid.UUID, expected models.DocumentStatus, patch models.DocumentPatch) (string, []any, error) {
	if patch.Empty() {
		return "", nil, ErrEmptyPatch
	}

	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.IsRevoked != nil {
		add("is_revoked", *patch.IsRevoked)
	}
	if patch.RevocationReason != nil {
		add("revocation_reason", *patch.RevocationReason)
	}
	if patch.RevokedAt != nil {
		add("revoked_at", *patch.RevokedAt)
	}
	if patch.RevokedBy != nil {
		add("revoked_by", *patch.RevokedBy)
	}
	if patch.ExpiryDate != nil {
		add("expiry_date", *patch.ExpiryDate)
	}
	if patch.SecurityLevel != nil {
		add("security_level", *patch.SecurityLevel)
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id, expected)
	query := fmt.Sprintf(
		`UPDATE documents SET %s WHERE id = $%d AND status = $%d AND is_revoked = FALSE RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), documentColumns,
	)
	return query, args, nil
}

// Ошибки репозитория документов.
var (
	ErrDocumentNotFound = errors.New("документ не найден")
	ErrDocumentConflict = errors.New("документ изменен параллельно")
	ErrEmptyPatch       = errors.New("пустой набор изменений документа")
)
