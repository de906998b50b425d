// Package identity - пользователи, JWT-токены и разрешение участников запросов.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

const tokenIssuer = "docanchor-server"

// Config - параметры сервиса идентичностей.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	CacheTTL  time.Duration
}

// Структура для пользовательских данных в JWT (claims).
type jwtClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Service регистрирует пользователей, выпускает и проверяет токены
// и разрешает ID пользователя в участника запроса.
type Service struct {
	userRepo repository.UserRepository
	cache    Cache
	secret   []byte
	tokenTTL time.Duration
	cacheTTL time.Duration
	log      *zap.Logger
}

// NewService создает сервис идентичностей.
func NewService(userRepo repository.UserRepository, cache Cache, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrEmptySecret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Service{
		userRepo: userRepo,
		cache:    cache,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: cfg.TokenTTL,
		cacheTTL: cfg.CacheTTL,
		log:      logger.With(zap.String("component", "identity")),
	}, nil
}

// Register регистрирует нового пользователя.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrEmptyCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Ошибка хеширования пароля", zap.String("username", username), zap.Error(err))
		return fmt.Errorf("внутренняя ошибка сервера при хешировании пароля: %w", err)
	}

	_, err = s.userRepo.CreateUser(ctx, &models.User{Username: username, PasswordHash: string(hashedPassword)})
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("внутренняя ошибка сервера при создании пользователя: %w", err)
	}

	s.log.Info("Пользователь зарегистрирован", zap.String("username", username))
	return nil
}

// Login аутентифицирует пользователя и возвращает JWT токен.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Общая ошибка для несуществующего пользователя и неверного пароля
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("внутренняя ошибка сервера при поиске пользователя: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Info("Неверный пароль", zap.String("username", username))
		return "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return "", err
	}

	// Сразу кладем участника в кэш: он понадобится на первом же запросе.
	s.remember(ctx, &models.Actor{ID: user.ID, Name: user.Username})
	s.log.Info("Пользователь аутентифицирован", zap.String("username", username))
	return token, nil
}

// IssueToken создает и подписывает JWT токен для пользователя.
func (s *Service) IssueToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи JWT: %w", err)
	}
	return signedToken, nil
}

// ParseToken проверяет токен и возвращает ID пользователя.
func (s *Service) ParseToken(tokenString string) (int64, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// Actor разрешает ID пользователя в участника. Сначала проверяется кэш;
// ошибки кэша не мешают обращению к базе.
func (s *Service) Actor(ctx context.Context, userID int64) (*models.Actor, error) {
	if s.cache != nil {
		actor, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.log.Warn("Кэш идентичностей недоступен", zap.Error(err))
		}
		if ok {
			return actor, nil
		}
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownActor
		}
		return nil, err
	}

	actor := &models.Actor{ID: user.ID, Name: user.Username}
	s.remember(ctx, actor)
	return actor, nil
}

// Forget удаляет участника из кэша.
func (s *Service) Forget(ctx context.Context, userID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, userID)
}

func (s *Service) remember(ctx context.Context, actor *models.Actor) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, actor, s.cacheTTL); err != nil {
		s.log.Warn("Не удалось сохранить участника в кэш", zap.Int64("user_id", actor.ID), zap.Error(err))
	}
}

// Кастомные ошибки сервиса.
var (
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	ErrUsernameTaken      = errors.New("имя пользователя уже занято")
	ErrEmptyCredentials   = errors.New("имя пользователя и пароль не могут быть пустыми")
	ErrInvalidToken       = errors.New("невалидный токен")
	ErrUnknownActor       = errors.New("пользователь токена не найден")
	ErrEmptySecret        = errors.New("не задан секрет для подписи JWT")
)
