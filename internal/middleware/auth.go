// Package middleware содержит HTTP middleware сервера: аутентификацию и журнал запросов.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// Тип для ключа контекста.
type contextKey string

const (
	// UserIDKey - ключ для хранения ID пользователя в контексте.
	UserIDKey contextKey = "userID"
	// ActorKey - ключ для хранения участника запроса в контексте.
	ActorKey contextKey = "actor"
)

// ActorResolver проверяет токен и разрешает ID пользователя в участника.
type ActorResolver interface {
	ParseToken(tokenString string) (int64, error)
	Actor(ctx context.Context, userID int64) (*models.Actor, error)
}

// Authenticator требует валидный JWT токен и кладет участника в контекст запроса.
func Authenticator(resolver ActorResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	log := logger.With(zap.String("component", "auth_middleware"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Debug("Заголовок Authorization отсутствует")
				http.Error(w, "Требуется аутентификация", http.StatusUnauthorized)
				return
			}
			ctx, status, msg := authenticate(r.Context(), resolver, log, authHeader)
			if status != http.StatusOK {
				http.Error(w, msg, status)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticator пропускает анонимные запросы, но если токен передан,
// он должен быть валидным.
func OptionalAuthenticator(resolver ActorResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	log := logger.With(zap.String("component", "auth_middleware"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx, status, msg := authenticate(r.Context(), resolver, log, authHeader)
			if status != http.StatusOK {
				http.Error(w, msg, status)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(
	ctx context.Context,
	resolver ActorResolver,
	log *zap.Logger,
	authHeader string,
) (context.Context, int, string) {
	// Проверяем формат "Bearer token"
	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
		log.Info("Неверный формат заголовка Authorization")
		return ctx, http.StatusUnauthorized, "Неверный формат токена"
	}

	userID, err := resolver.ParseToken(headerParts[1])
	if err != nil {
		log.Info("Ошибка парсинга/валидации токена", zap.Error(err))
		return ctx, http.StatusUnauthorized, "Невалидный токен"
	}

	actor, err := resolver.Actor(ctx, userID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ctx, http.StatusServiceUnavailable, "Запрос отменен"
		}
		log.Info("Не удалось определить участника", zap.Int64("user_id", userID), zap.Error(err))
		return ctx, http.StatusUnauthorized, "Невалидный токен"
	}

	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, ActorKey, actor)
	log.Debug("Пользователь аутентифицирован", zap.Int64("user_id", userID))
	return ctx, http.StatusOK, ""
}

// GetUserIDFromContext извлекает UserID из контекста запроса.
// Возвращает ID пользователя и true, если ID найден, иначе 0 и false.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

// ActorFromContext возвращает участника запроса или nil для анонимного запроса.
func ActorFromContext(ctx context.Context) *models.Actor {
	actor, _ := ctx.Value(ActorKey).(*models.Actor)
	return actor
}
