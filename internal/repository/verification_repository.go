package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// VerificationRepository - журнал проверок, только добавление.
type VerificationRepository interface {
	Create(ctx context.Context, rec *models.VerificationRecord) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.VerificationRecord, error)
}

type postgresVerificationRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewPostgresVerificationRepository создает репозиторий журнала проверок.
func NewPostgresVerificationRepository(db *sqlx.DB, logger *zap.Logger) VerificationRepository {
	return &postgresVerificationRepository{db: db, log: logger.With(zap.String("component", "verification_repo"))}
}

// Create добавляет запись одним INSERT и заполняет ID и created_at.
func (r *postgresVerificationRepository) Create(ctx context.Context, rec *models.VerificationRecord) error {
	query := `INSERT INTO verification_records (document_id, verifier_id, verified, verification_method, details,
	          compliance_metadata, jurisdiction)
	          VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
	          RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		rec.DocumentID, rec.VerifierID, rec.Verified, rec.Method, rec.Details,
		jsonParam(rec.ComplianceMetadata), rec.Jurisdiction,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		r.log.Error("Ошибка сохранения записи проверки", zap.Stringer("document_id", rec.DocumentID), zap.Error(err))
		return fmt.Errorf("ошибка выполнения запроса на создание записи проверки: %w", err)
	}
	return nil
}

// ListByDocument возвращает записи проверок документа в порядке создания.
func (r *postgresVerificationRepository) ListByDocument(
	ctx context.Context,
	documentID uuid.UUID,
) ([]models.VerificationRecord, error) {
	query := `SELECT id, document_id, verifier_id, verified, verification_method, details, compliance_metadata,
	          jurisdiction, created_at
	          FROM verification_records WHERE document_id=$1 ORDER BY id`
	records := make([]models.VerificationRecord, 0)

	if err := r.db.SelectContext(ctx, &records, query, documentID); err != nil {
		r.log.Error("Ошибка получения журнала проверок", zap.Stringer("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("ошибка выполнения запроса на получение журнала проверок: %w", err)
	}
	return records, nil
}
