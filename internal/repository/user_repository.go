package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// UserRepository определяет методы для работы с данными пользователей в хранилище.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// postgresUserRepository реализует UserRepository для PostgreSQL.
type postgresUserRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewPostgresUserRepository создает новый экземпляр репозитория пользователей для PostgreSQL.
func NewPostgresUserRepository(db *sqlx.DB, logger *zap.Logger) UserRepository {
	return &postgresUserRepository{db: db, log: logger.With(zap.String("component", "user_repo"))}
}

// CreateUser создает нового пользователя в базе данных.
// Возвращает ID созданного пользователя или ошибку.
func (r *postgresUserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	query := `INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id`
	var userID int64

	err := r.db.QueryRowxContext(ctx, query, user.Username, user.PasswordHash).Scan(&userID)
	if err != nil {
		// Проверяем на ошибку нарушения уникальности (duplicate key)
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			r.log.Info("Имя пользователя уже занято", zap.String("username", user.Username))
			return 0, ErrUsernameTaken
		}
		r.log.Error("Ошибка при создании пользователя", zap.String("username", user.Username), zap.Error(err))
		return 0, fmt.Errorf("ошибка выполнения запроса на создание пользователя: %w", err)
	}

	r.log.Info("Пользователь создан", zap.String("username", user.Username), zap.Int64("user_id", userID))
	return userID, nil
}

// GetUserByUsername находит пользователя по его имени.
func (r *postgresUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password_hash, created_at, updated_at FROM users WHERE username=$1`
	return r.getOne(ctx, query, username)
}

// GetUserByID находит пользователя по ID.
func (r *postgresUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, username, password_hash, created_at, updated_at FROM users WHERE id=$1`
	return r.getOne(ctx, query, id)
}

func (r *postgresUserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		r.log.Error("Ошибка при поиске пользователя", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("ошибка выполнения запроса на получение пользователя: %w", err)
	}
	return &user, nil
}

// Кастомные ошибки репозитория.
var (
	ErrUserNotFound  = errors.New("пользователь не найден")
	ErrUsernameTaken = errors.New("имя пользователя уже занято")
)
