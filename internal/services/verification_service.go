package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/fingerprint"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/metrics"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/storage"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

const (
	defaultBulkMaxItems    = 10
	defaultBulkConcurrency = 4

	// recordTimeout ограничивает запись в журнал проверок после отмены запроса.
	recordTimeout = 5 * time.Second
)

// Коды ошибок элементов пакетной проверки.
const (
	BulkErrNotFound     = "NOT_FOUND"
	BulkErrAccessDenied = "ACCESS_DENIED"
	BulkErrInternal     = "INTERNAL"
)

// VerificationConfig - ограничения пакетной проверки.
type VerificationConfig struct {
	BulkMaxItems    int
	BulkConcurrency int
}

// VerificationService проверяет документы по двум источникам: содержимому в хранилище
// и транзакции в реестре. Каждая попытка проверки записывается в журнал.
type VerificationService struct {
	docs     repository.DocumentRepository
	records  repository.VerificationRepository
	files    storage.FileStorage
	gateway  LedgerGateway
	recorder AuditRecorder
	metrics  *metrics.Metrics
	cfg      VerificationConfig
	log      *zap.Logger
}

// NewVerificationService создает сервис проверки документов.
func NewVerificationService(
	docs repository.DocumentRepository,
	records repository.VerificationRepository,
	files storage.FileStorage,
	gateway LedgerGateway,
	recorder AuditRecorder,
	m *metrics.Metrics,
	cfg VerificationConfig,
	logger *zap.Logger,
) *VerificationService {
	if cfg.BulkMaxItems <= 0 {
		cfg.BulkMaxItems = defaultBulkMaxItems
	}
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = defaultBulkConcurrency
	}
	return &VerificationService{
		docs:     docs,
		records:  records,
		files:    files,
		gateway:  gateway,
		recorder: recorder,
		metrics:  m,
		cfg:      cfg,
		log:      logger.With(zap.String("component", "verification")),
	}
}

// VerifyDocument выполняет полную проверку документа: вердикт положительный, только если
// совпало содержимое и транзакция регистрации подтверждена реестром.
// Запись в журнал сохраняется до возврата результата.
func (s *VerificationService) VerifyDocument(
	ctx context.Context,
	documentID string,
	actor *models.Actor,
) (*models.VerificationOutcome, error) {
	id, err := parseDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	return s.verifyByID(ctx, id, actor, models.MethodMultiFactor)
}

// VerifyByFingerprint проверяет документ только по отпечатку: содержимое не читается,
// вердикт определяется подтверждением транзакции в реестре.
func (s *VerificationService) VerifyByFingerprint(
	ctx context.Context,
	fp models.Fingerprint,
	actor *models.Actor,
) (*models.VerificationOutcome, error) {
	fp, err := fingerprint.ValidateHex(fp)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.FindByHash(ctx, fp, fingerprint.Prefix(fp.Hash))
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, fingerprint.Prefix(fp.Hash))
		}
		return nil, err
	}
	return s.evaluate(ctx, doc, actor, models.MethodBlockchain, false)
}

// GetVerificationHistory возвращает журнал проверок документа владельцу.
func (s *VerificationService) GetVerificationHistory(
	ctx context.Context,
	documentID string,
	actor *models.Actor,
) ([]models.VerificationRecord, error) {
	id, err := parseDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	doc, err := loadDocument(ctx, s.docs, id)
	if err != nil {
		return nil, err
	}
	if err = authorize(doc, actor); err != nil {
		return nil, err
	}
	return s.records.ListByDocument(ctx, id)
}

// VerifyBulk проверяет пакет документов параллельно. Ошибка одного документа
// не влияет на остальные; порядок результатов совпадает с порядком идентификаторов.
func (s *VerificationService) VerifyBulk(
	ctx context.Context,
	documentIDs []string,
	actor *models.Actor,
) (*models.BulkResult, error) {
	if len(documentIDs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(documentIDs) > s.cfg.BulkMaxItems {
		return nil, fmt.Errorf("%w: %d, максимум %d", ErrTooManyItems, len(documentIDs), s.cfg.BulkMaxItems)
	}

	ids := make([]uuid.UUID, len(documentIDs))
	for i, raw := range documentIDs {
		id, err := parseDocumentID(raw)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	if s.metrics != nil {
		s.metrics.BulkBatchSize.Observe(float64(len(ids)))
	}

	items := make([]models.BulkItem, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.BulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			items[i] = s.verifyItem(ctx, documentIDs[i], id, actor)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.BulkResult{Results: items, Summary: models.BulkSummary{Total: len(items)}}
	for _, item := range items {
		if item.Outcome != nil && item.Outcome.Verified {
			result.Summary.Verified++
		}
	}
	result.Summary.Failed = result.Summary.Total - result.Summary.Verified

	s.log.Info("Пакетная проверка завершена",
		zap.Int("total", result.Summary.Total),
		zap.Int("verified", result.Summary.Verified),
		zap.Int("failed", result.Summary.Failed),
	)
	return result, nil
}

func (s *VerificationService) verifyItem(
	ctx context.Context,
	raw string,
	id uuid.UUID,
	actor *models.Actor,
) (item models.BulkItem) {
	item.DocumentID = raw
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Паника при проверке документа", zap.Stringer("document_id", id), zap.Any("panic", r))
			item.Outcome = nil
			item.Error = fmt.Sprintf("внутренняя ошибка: %v", r)
			item.ErrorCode = BulkErrInternal
		}
	}()

	outcome, err := s.verifyByID(ctx, id, actor, models.MethodBulk)
	if err != nil {
		item.Error = err.Error()
		switch {
		case errors.Is(err, ErrDocumentNotFound):
			item.ErrorCode = BulkErrNotFound
		case errors.Is(err, ErrAccessDenied):
			item.ErrorCode = BulkErrAccessDenied
		default:
			item.ErrorCode = BulkErrInternal
		}
		return item
	}
	item.Outcome = outcome
	return item
}

func (s *VerificationService) verifyByID(
	ctx context.Context,
	id uuid.UUID,
	actor *models.Actor,
	method models.VerificationMethod,
) (*models.VerificationOutcome, error) {
	doc, err := loadDocument(ctx, s.docs, id)
	if err != nil {
		return nil, err
	}
	// Отзыв проверяется первым: по отозванному документу любой участник получает только вердикт REVOKED.
	if !doc.IsRevoked {
		if err = authorize(doc, actor); err != nil {
			return nil, err
		}
	}
	return s.evaluate(ctx, doc, actor, method, true)
}

// evaluate вычисляет вердикт по документу и записывает его в журнал.
func (s *VerificationService) evaluate(
	ctx context.Context,
	doc *models.Document,
	actor *models.Actor,
	method models.VerificationMethod,
	checkFile bool,
) (*models.VerificationOutcome, error) {
	outcome := &models.VerificationOutcome{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Method:     method,
		VerifiedAt: time.Now().UTC(),
	}

	switch {
	case doc.IsRevoked:
		// Отозванный документ не проверяется ни по содержимому, ни по реестру.
		outcome.Reason = models.ReasonRevoked
		outcome.File = models.FileCheck{Annotation: models.FileCheckNotApplicable}
	default:
		s.assess(ctx, doc, outcome, checkFile)
	}

	rec := &models.VerificationRecord{
		DocumentID:         doc.ID,
		VerifierID:         actor.ActorID(),
		Verified:           outcome.Verified,
		Method:             method,
		Details:            details(outcome),
		ComplianceMetadata: complianceMetadata(outcome),
	}
	// Вердикт уже вычислен: запись в журнал не должна теряться из-за отмены запроса клиентом.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.Record(recordCtx, rec); err != nil {
		return nil, err
	}
	outcome.RecordID = rec.ID
	return outcome, nil
}

// assess проверяет оба фактора. Причина отказа - первый непрошедший фактор.
func (s *VerificationService) assess(
	ctx context.Context,
	doc *models.Document,
	outcome *models.VerificationOutcome,
	checkFile bool,
) {
	fp, registered := doc.Fingerprint()
	txID := doc.TxID()
	if !registered || txID == "" {
		outcome.Reason = models.ReasonNotRegistered
		outcome.File = models.FileCheck{Annotation: models.FileCheckNotApplicable}
		return
	}

	if checkFile {
		outcome.File = s.checkFile(ctx, doc, fp)
	} else {
		outcome.File = models.FileCheck{
			Verified:     true,
			Annotation:   models.FileCheckNotApplicable,
			Algorithm:    fp.Algorithm,
			ExpectedHash: fp.Hash,
		}
	}

	outcome.Ledger = s.gateway.QueryStatus(ctx, txID, doc.Network())
	ledgerReason := ledgerFailure(outcome.Ledger)

	switch {
	case !outcome.File.Verified && outcome.File.Annotation == models.FileCheckMismatch:
		outcome.Reason = models.ReasonFileMismatch
	case !outcome.File.Verified:
		outcome.Reason = models.ReasonFileUnreadable
	case ledgerReason != "":
		outcome.Reason = ledgerReason
	default:
		outcome.Verified = true
	}
}

// checkFile пересчитывает отпечаток сохраненного содержимого. Если объекта
// в хранилище нет, фактор пропускается и считается пройденным.
func (s *VerificationService) checkFile(
	ctx context.Context,
	doc *models.Document,
	fp models.Fingerprint,
) models.FileCheck {
	check := models.FileCheck{Algorithm: fp.Algorithm, ExpectedHash: fp.Hash}

	if doc.StoragePath == "" {
		check.Verified = true
		check.Annotation = models.FileCheckSkipped
		return check
	}
	alg, err := fingerprint.ParseAlgorithm(fp.Algorithm)
	if err != nil {
		check.Annotation = models.FileCheckUnreadable
		check.Error = err.Error()
		return check
	}

	rc, err := s.files.Open(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.log.Warn("Содержимое документа отсутствует в хранилище, проверка файла пропущена",
				zap.Stringer("document_id", doc.ID))
			check.Verified = true
			check.Annotation = models.FileCheckSkipped
			return check
		}
		check.Annotation = models.FileCheckUnreadable
		check.Error = err.Error()
		return check
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			s.log.Warn("Ошибка закрытия содержимого документа", zap.Error(closeErr))
		}
	}()

	res, err := fingerprint.Verify(rc, fp.Hash, alg)
	if err != nil {
		check.Annotation = models.FileCheckUnreadable
		check.Error = err.Error()
		return check
	}
	check.CurrentHash = res.CurrentHash
	check.Verified = res.Verified
	if res.Verified {
		check.Annotation = models.FileCheckVerified
	} else {
		check.Annotation = models.FileCheckMismatch
	}
	return check
}

// ledgerFailure возвращает причину отказа по реестру или пустую строку.
// Синтезированная транзакция считается подтвержденной.
func ledgerFailure(l *models.LedgerOutcome) string {
	switch {
	case l == nil || !l.Success:
		return models.ReasonLedgerUnavailable
	case l.Simulated:
		return ""
	case l.Status != models.TxStatusConfirmed:
		return models.ReasonLedgerUnconfirmed
	}
	return ""
}

func details(o *models.VerificationOutcome) string {
	parts := []string{"file=" + o.File.Annotation}
	if o.Ledger != nil {
		ledgerState := string(o.Ledger.Status)
		if !o.Ledger.Success {
			ledgerState = "unavailable"
		}
		if o.Ledger.Simulated {
			ledgerState += "(simulated)"
		}
		parts = append(parts, "ledger="+ledgerState)
	}
	if o.Reason != "" {
		parts = append(parts, "reason="+o.Reason)
	}
	return strings.Join(parts, " ")
}

func complianceMetadata(o *models.VerificationOutcome) json.RawMessage {
	meta := map[string]any{
		"status": o.Status,
		"file":   o.File,
	}
	if o.Reason != "" {
		meta["reason"] = o.Reason
	}
	if o.Ledger != nil {
		meta["ledger"] = o.Ledger
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
