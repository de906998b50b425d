// Package audit записывает журнал попыток проверки документов.
package audit

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/metrics"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// Recorder добавляет записи в журнал проверок. Каждая запись - одна строка,
// записи не изменяются и не удаляются.
type Recorder struct {
	repo    repository.VerificationRepository
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewRecorder создает регистратор журнала проверок.
func NewRecorder(repo repository.VerificationRepository, m *metrics.Metrics, logger *zap.Logger) *Recorder {
	return &Recorder{repo: repo, metrics: m, log: logger.With(zap.String("component", "audit"))}
}

// Record синхронно сохраняет запись. Ошибка сохранения возвращается вызывающему.
func (r *Recorder) Record(ctx context.Context, rec *models.VerificationRecord) error {
	if err := r.repo.Create(ctx, rec); err != nil {
		r.log.Error("Не удалось сохранить запись проверки",
			zap.Stringer("document_id", rec.DocumentID), zap.Error(err))
		return fmt.Errorf("ошибка записи журнала проверок: %w", err)
	}

	if r.metrics != nil {
		r.metrics.Verifications.WithLabelValues(string(rec.Method), strconv.FormatBool(rec.Verified)).Inc()
	}
	fields := []zap.Field{
		zap.Int64("record_id", rec.ID),
		zap.Stringer("document_id", rec.DocumentID),
		zap.String("method", string(rec.Method)),
		zap.Bool("verified", rec.Verified),
	}
	if rec.VerifierID != nil {
		fields = append(fields, zap.Int64("verifier_id", *rec.VerifierID))
	}
	r.log.Info("Проверка записана в журнал", fields...)
	return nil
}
