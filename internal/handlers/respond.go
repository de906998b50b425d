// Package handlers содержит HTTP-обработчики API сервера.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/fingerprint"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/ledger"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/lifecycle"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/services"
)

const internalErrorMessage = "Внутренняя ошибка сервера"

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Клиент уже получил статус, изменить ответ нельзя.
		log.Warn("Ошибка кодирования ответа", zap.Error(err))
	}
}

// writeServiceError переводит ошибку сервиса в HTTP-статус.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("Внутренняя ошибка", zap.String("op", op), zap.Error(err))
		http.Error(w, internalErrorMessage, status)
		return
	}
	log.Info("Запрос отклонен", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidDocumentID),
		errors.Is(err, services.ErrEmptyBatch),
		errors.Is(err, services.ErrTooManyItems),
		errors.Is(err, fingerprint.ErrUnsupportedAlgorithm),
		errors.Is(err, fingerprint.ErrInvalidDigest),
		errors.Is(err, lifecycle.ErrUnknownState):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDocumentRevoked),
		errors.Is(err, services.ErrFingerprintImmutable),
		errors.Is(err, services.ErrConcurrentUpdate),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrLedgerRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
