// Package services содержит бизнес-логику регистрации и проверки документов.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// LedgerGateway - операции шлюза реестра, которые нужны сервисам.
type LedgerGateway interface {
	Network() string
	Register(ctx context.Context, doc *models.Document, fp models.Fingerprint) (*models.LedgerOutcome, error)
	UpdateState(
		ctx context.Context,
		doc *models.Document,
		state models.DocumentStatus,
		metadata map[string]string,
	) (*models.LedgerOutcome, error)
	QueryStatus(ctx context.Context, txID, network string) *models.LedgerOutcome
	History(ctx context.Context, documentID uuid.UUID) ([]models.LedgerTransaction, error)
}

// AuditRecorder - журнал попыток проверки.
type AuditRecorder interface {
	Record(ctx context.Context, rec *models.VerificationRecord) error
}

func parseDocumentID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidDocumentID, raw)
	}
	return id, nil
}

func loadDocument(ctx context.Context, docs repository.DocumentRepository, id uuid.UUID) (*models.Document, error) {
	doc, err := docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return nil, err
	}
	return doc, nil
}

// authorize - доступ к документу есть только у владельца.
func authorize(doc *models.Document, actor *models.Actor) error {
	if actor == nil || actor.ID != doc.OwnerID {
		return ErrAccessDenied
	}
	return nil
}

// Кастомные ошибки сервисов.
var (
	ErrInvalidDocumentID    = errors.New("некорректный идентификатор документа")
	ErrDocumentNotFound     = errors.New("документ не найден")
	ErrAccessDenied         = errors.New("нет доступа к документу")
	ErrDocumentRevoked      = errors.New("документ отозван")
	ErrFingerprintImmutable = errors.New("отпечаток документа уже зарегистрирован и не может быть изменен")
	ErrConcurrentUpdate     = errors.New("документ был изменен параллельно, повторите запрос")
	ErrEmptyBatch           = errors.New("пустой список документов")
	ErrTooManyItems         = errors.New("слишком много документов в пакете")
)
