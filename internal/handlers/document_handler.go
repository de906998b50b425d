package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/middleware"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/services"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

const (
	maxUploadSize   = 100 << 20
	maxRequestBody  = 1 << 20
	headerFileName  = "X-File-Name"
	headerDocTitle  = "X-Document-Title"
	headerAlgorithm = "X-Hash-Algorithm"
)

// DocumentRegistrar - операции регистрации и жизненного цикла документов.
type DocumentRegistrar interface {
	RegisterDocument(ctx context.Context, req services.RegisterRequest) (*models.LedgerOutcome, error)
	UpdateDocumentState(
		ctx context.Context,
		req services.StateUpdateRequest,
		actor *models.Actor,
	) (*services.StateUpdateResult, error)
	GetDocumentHistory(ctx context.Context, documentID string, actor *models.Actor) ([]models.LedgerTransaction, error)
	UploadDocument(ctx context.Context, req services.UploadRequest, content io.Reader) (*services.UploadResult, error)
}

// DocumentVerifier - операции проверки документов.
type DocumentVerifier interface {
	VerifyDocument(ctx context.Context, documentID string, actor *models.Actor) (*models.VerificationOutcome, error)
	VerifyByFingerprint(
		ctx context.Context,
		fp models.Fingerprint,
		actor *models.Actor,
	) (*models.VerificationOutcome, error)
	GetVerificationHistory(
		ctx context.Context,
		documentID string,
		actor *models.Actor,
	) ([]models.VerificationRecord, error)
	VerifyBulk(ctx context.Context, documentIDs []string, actor *models.Actor) (*models.BulkResult, error)
}

// DocumentHandler обрабатывает HTTP-запросы, связанные с документами.
type DocumentHandler struct {
	registrar DocumentRegistrar
	verifier  DocumentVerifier
	log       *zap.Logger
}

// NewDocumentHandler создает новый экземпляр DocumentHandler.
func NewDocumentHandler(registrar DocumentRegistrar, verifier DocumentVerifier, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		registrar: registrar,
		verifier:  verifier,
		log:       logger.With(zap.String("component", "document_handler")),
	}
}

type registerBody struct {
	Fingerprint models.Fingerprint `json:"fingerprint"`
	FileName    string             `json:"file_name"`
}

type bulkBody struct {
	DocumentIDs []string `json:"document_ids"`
}

// Upload принимает содержимое документа в теле запроса, сохраняет и регистрирует его.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	req := services.UploadRequest{
		OwnerID:     actor.ID,
		Title:       r.Header.Get(headerDocTitle),
		FileName:    r.Header.Get(headerFileName),
		ContentType: r.Header.Get("Content-Type"),
		Size:        r.ContentLength,
		Algorithm:   r.Header.Get(headerAlgorithm),
	}
	if req.FileName == "" {
		http.Error(w, "Отсутствует заголовок "+headerFileName, http.StatusBadRequest)
		return
	}
	if r.ContentLength > maxUploadSize {
		http.Error(w, "Файл слишком большой", http.StatusRequestEntityTooLarge)
		return
	}

	res, err := h.registrar.UploadDocument(r.Context(), req, http.MaxBytesReader(w, r.Body, maxUploadSize))
	if err != nil {
		writeServiceError(w, h.log, "upload", err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, res)
}

// Register регистрирует отпечаток документа в реестре.
func (h *DocumentHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body registerBody
	if !h.decode(w, r, &body) {
		return
	}

	outcome, err := h.registrar.RegisterDocument(r.Context(), services.RegisterRequest{
		DocumentID:  chi.URLParam(r, "id"),
		Fingerprint: body.Fingerprint,
		OwnerID:     actor.ID,
		FileName:    body.FileName,
	})
	if err != nil {
		writeServiceError(w, h.log, "register", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, outcome)
}

// UpdateState меняет состояние жизненного цикла документа.
func (h *DocumentHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req services.StateUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.DocumentID = chi.URLParam(r, "id")

	res, err := h.registrar.UpdateDocumentState(r.Context(), req, actor)
	if err != nil {
		writeServiceError(w, h.log, "update_state", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, res)
}

// History возвращает транзакции реестра по документу.
func (h *DocumentHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	txs, err := h.registrar.GetDocumentHistory(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		writeServiceError(w, h.log, "history", err)
		return
	}
	if txs == nil {
		txs = []models.LedgerTransaction{}
	}
	writeJSON(w, h.log, http.StatusOK, txs)
}

// Verifications возвращает журнал проверок документа.
func (h *DocumentHandler) Verifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	records, err := h.verifier.GetVerificationHistory(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		writeServiceError(w, h.log, "verifications", err)
		return
	}
	if records == nil {
		records = []models.VerificationRecord{}
	}
	writeJSON(w, h.log, http.StatusOK, records)
}

// Verify выполняет полную проверку документа.
func (h *DocumentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	outcome, err := h.verifier.VerifyDocument(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		writeServiceError(w, h.log, "verify", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, outcome)
}

// VerifyBulk проверяет пакет документов.
func (h *DocumentHandler) VerifyBulk(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body bulkBody
	if !h.decode(w, r, &body) {
		return
	}
	result, err := h.verifier.VerifyBulk(r.Context(), body.DocumentIDs, actor)
	if err != nil {
		writeServiceError(w, h.log, "verify_bulk", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, result)
}

// VerifyByHash - публичная проверка по отпечатку. Участник может быть анонимным.
func (h *DocumentHandler) VerifyByHash(w http.ResponseWriter, r *http.Request) {
	fp := models.Fingerprint{
		Algorithm: r.URL.Query().Get("algorithm"),
		Hash:      chi.URLParam(r, "hash"),
	}
	outcome, err := h.verifier.VerifyByFingerprint(r.Context(), fp, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, "verify_hash", err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, outcome)
}

func (h *DocumentHandler) actor(w http.ResponseWriter, r *http.Request) (*models.Actor, bool) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		h.log.Error("Не удалось получить участника из контекста")
		http.Error(w, internalErrorMessage, http.StatusInternalServerError)
		return nil, false
	}
	return actor, true
}

func (h *DocumentHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v); err != nil {
		h.log.Info("Ошибка декодирования запроса", zap.Error(err))
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return false
	}
	return true
}
