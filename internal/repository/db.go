package repository

import (
	"context"
	_ "embed" // Схема БД встраивается в бинарник
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Драйвер PostgreSQL, импортируем для регистрации
	"go.uber.org/zap"
)

const (
	maxOpenConns    = 25              // Максимальное количество открытых соединений
	maxIdleConns    = 25              // Максимальное количество простаивающих соединений
	connMaxLifetime = 5 * time.Minute // Максимальное время жизни соединения
	connMaxIdleTime = 5 * time.Minute // Максимальное время простоя соединения
)

// Коды ошибок PostgreSQL.
const (
	pgUniqueViolationCode = "23505"
)

//go:embed schema.sql
var schema string

// NewPostgresDB создает и возвращает новое подключение к PostgreSQL.
func NewPostgresDB(dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	logger.Info("Подключение к PostgreSQL...")

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Проверка соединения
	if err = db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Ошибка закрытия соединения с БД после неудачного пинга", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("ошибка проверки соединения с БД (ping): %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	logger.Info("Подключение к PostgreSQL успешно установлено")
	return db, nil
}

// Migrate создает недостающие таблицы и индексы. Повторный вызов безопасен.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ошибка применения схемы БД: %w", err)
	}
	return nil
}

// jsonParam готовит JSON для параметра типа jsonb.
// lib/pq передает []byte как bytea, поэтому JSON отправляется строкой.
func jsonParam(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
