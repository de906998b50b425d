package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/fingerprint"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/lifecycle"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/storage"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

const defaultSecurityLevel = "STANDARD"

// RegisterRequest - запрос на регистрацию отпечатка документа в реестре.
type RegisterRequest struct {
	DocumentID  string             `json:"document_id"`
	Fingerprint models.Fingerprint `json:"fingerprint"`
	OwnerID     int64              `json:"owner_id"`
	FileName    string             `json:"file_name"`
}

// StateUpdateRequest - запрос на смену состояния документа.
type StateUpdateRequest struct {
	DocumentID string            `json:"document_id"`
	State      string            `json:"state"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// StateUpdateResult - результат смены состояния.
type StateUpdateResult struct {
	Ledger   *models.LedgerOutcome `json:"ledger"`
	Document *models.Document      `json:"document"`
}

// UploadRequest - метаданные загружаемого документа.
type UploadRequest struct {
	OwnerID     int64
	Title       string
	FileName    string
	ContentType string
	Size        int64 // -1, если размер неизвестен
	Algorithm   string
}

// UploadResult - результат загрузки и регистрации документа.
type UploadResult struct {
	Document *models.Document     `json:"document"`
	Ledger   *models.LedgerOutcome `json:"ledger"`
}

// RegistrationService регистрирует документы и управляет их жизненным циклом.
type RegistrationService struct {
	docs    repository.DocumentRepository
	files   storage.FileStorage
	gateway LedgerGateway
	log     *zap.Logger
}

// NewRegistrationService создает сервис регистрации документов.
func NewRegistrationService(
	docs repository.DocumentRepository,
	files storage.FileStorage,
	gateway LedgerGateway,
	logger *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		docs:    docs,
		files:   files,
		gateway: gateway,
		log:     logger.With(zap.String("component", "registration")),
	}
}

// RegisterDocument регистрирует отпечаток документа в реестре. Повторный вызов
// с тем же отпечатком возвращает тот же результат.
func (s *RegistrationService) RegisterDocument(ctx context.Context, req RegisterRequest) (*models.LedgerOutcome, error) {
	id, err := parseDocumentID(req.DocumentID)
	if err != nil {
		return nil, err
	}
	fp, err := fingerprint.ValidateHex(req.Fingerprint)
	if err != nil {
		return nil, err
	}

	doc, err := loadDocument(ctx, s.docs, id)
	if err != nil {
		return nil, err
	}
	if doc.IsRevoked {
		return nil, ErrDocumentRevoked
	}
	if doc.OwnerID != req.OwnerID {
		return nil, ErrAccessDenied
	}
	if stored, ok := doc.Fingerprint(); ok {
		if stored.Algorithm != fp.Algorithm || !fingerprint.Equal(stored.Hash, fp.Hash) {
			return nil, ErrFingerprintImmutable
		}
	}
	if req.FileName != "" {
		doc.OriginalFilename = req.FileName
	}

	outcome, err := s.gateway.Register(ctx, doc, fp)
	if err != nil {
		s.log.Warn("Регистрация в реестре не выполнена", zap.Stringer("document_id", id), zap.Error(err))
		return nil, err
	}

	err = s.docs.MarkRegistered(ctx, id, fp, fingerprint.Prefix(fp.Hash), outcome.TxID, outcome.Network)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentConflict) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}

	s.log.Info("Документ зарегистрирован",
		zap.Stringer("document_id", id),
		zap.String("tx_id", outcome.TxID),
		zap.Bool("simulated", outcome.Simulated),
	)
	return outcome, nil
}

// UpdateDocumentState переводит документ в новое состояние. Сначала отправляется
// транзакция в реестр; если реестр ее отклонил, локальное состояние не меняется.
func (s *RegistrationService) UpdateDocumentState(
	ctx context.Context,
	req StateUpdateRequest,
	actor *models.Actor,
) (*StateUpdateResult, error) {
	id, err := parseDocumentID(req.DocumentID)
	if err != nil {
		return nil, err
	}
	target, err := lifecycle.ParseTarget(req.State)
	if err != nil {
		return nil, err
	}

	doc, err := loadDocument(ctx, s.docs, id)
	if err != nil {
		return nil, err
	}
	if doc.IsRevoked {
		return nil, ErrDocumentRevoked
	}
	if err = authorize(doc, actor); err != nil {
		return nil, err
	}
	if err = lifecycle.Validate(doc.Status, target); err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["previous_state"] = string(doc.Status)
	if req.Reason != "" {
		metadata["reason"] = req.Reason
	}

	outcome, err := s.gateway.UpdateState(ctx, doc, target, metadata)
	if err != nil {
		return nil, err
	}

	patch := models.DocumentPatch{Status: &target}
	if target == models.StatusRevoked {
		revoked := true
		now := time.Now().UTC()
		patch.IsRevoked = &revoked
		patch.RevokedAt = &now
		patch.RevokedBy = actor.ActorID()
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			patch.RevocationReason = &reason
		}
	}

	updated, err := s.docs.ApplyPatch(ctx, id, doc.Status, patch)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentConflict) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}

	s.log.Info("Состояние документа изменено",
		zap.Stringer("document_id", id),
		zap.String("from", string(doc.Status)),
		zap.String("to", string(target)),
		zap.Bool("simulated", outcome.Simulated),
	)
	return &StateUpdateResult{Ledger: outcome, Document: updated}, nil
}

// GetDocumentHistory возвращает транзакции реестра по документу в порядке создания.
func (s *RegistrationService) GetDocumentHistory(
	ctx context.Context,
	documentID string,
	actor *models.Actor,
) ([]models.LedgerTransaction, error) {
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
	return s.gateway.History(ctx, id)
}

// UploadDocument сохраняет содержимое в хранилище, одновременно вычисляя отпечаток,
// создает документ и регистрирует его в реестре.
func (s *RegistrationService) UploadDocument(
	ctx context.Context,
	req UploadRequest,
	content io.Reader,
) (*UploadResult, error) {
	alg, err := fingerprint.ParseAlgorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}
	hasher, err := fingerprint.NewHasher(alg)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	objectKey := fmt.Sprintf("%d/%s", req.OwnerID, id)
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err = s.files.Save(ctx, objectKey, io.TeeReader(content, hasher), req.Size, contentType); err != nil {
		return nil, fmt.Errorf("ошибка сохранения содержимого документа: %w", err)
	}

	title := req.Title
	if title == "" {
		title = req.FileName
	}
	doc := &models.Document{
		ID:               id,
		OwnerID:          req.OwnerID,
		Title:            title,
		OriginalFilename: req.FileName,
		FileType:         contentType,
		FileSize:         hasher.Written(),
		StoragePath:      objectKey,
		Status:           models.StatusUploaded,
		SecurityLevel:    defaultSecurityLevel,
	}
	if err = s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	fp := hasher.Fingerprint()
	outcome, err := s.RegisterDocument(ctx, RegisterRequest{
		DocumentID:  id.String(),
		Fingerprint: fp,
		OwnerID:     req.OwnerID,
		FileName:    req.FileName,
	})
	if err != nil {
		return nil, fmt.Errorf("документ %s сохранен, но не зарегистрирован: %w", id, err)
	}

	registered, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Document: registered, Ledger: outcome}, nil
}
