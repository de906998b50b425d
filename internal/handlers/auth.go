package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/identity"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// AuthService определяет интерфейс для сервиса аутентификации.
type AuthService interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error) // Возвращает JWT токен или ошибку
}

// AuthHandler обрабатывает HTTP-запросы, связанные с аутентификацией.
type AuthHandler struct {
	service AuthService
	log     *zap.Logger
}

// NewAuthHandler создает новый экземпляр AuthHandler.
func NewAuthHandler(s AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: s, log: logger.With(zap.String("component", "auth_handler"))}
}

// Register обрабатывает запрос на регистрацию нового пользователя.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Info("Ошибка декодирования запроса регистрации", zap.Error(err))
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Имя пользователя и пароль не могут быть пустыми", http.StatusBadRequest)
		return
	}

	err := h.service.Register(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrUsernameTaken):
		http.Error(w, "Имя пользователя уже занято", http.StatusConflict)
		return
	case errors.Is(err, identity.ErrEmptyCredentials):
		http.Error(w, "Имя пользователя и пароль не могут быть пустыми", http.StatusBadRequest)
		return
	default:
		h.log.Error("Ошибка регистрации пользователя", zap.String("username", req.Username), zap.Error(err))
		http.Error(w, internalErrorMessage, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte("Пользователь успешно зарегистрирован\n"))
}

// Login обрабатывает запрос на вход пользователя.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Info("Ошибка декодирования запроса входа", zap.Error(err))
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Имя пользователя и пароль не могут быть пустыми", http.StatusBadRequest)
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			http.Error(w, "Неверное имя пользователя или пароль", http.StatusUnauthorized)
			return
		}
		h.log.Error("Ошибка входа пользователя", zap.String("username", req.Username), zap.Error(err))
		http.Error(w, internalErrorMessage, http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, http.StatusOK, models.LoginResponse{Token: token})
}
