package models

import "time"

// User представляет пользователя системы (владельца документов или проверяющего).
// Тэги `db` используются для маппинга с полями БД с помощью sqlx.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"` // Не отправляем хеш пароля в JSON
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Actor - идентичность участника запроса.
// nil означает анонимного участника (публичная проверка по отпечатку).
type Actor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ActorID возвращает ID участника или nil для анонимного запроса.
func (a *Actor) ActorID() *int64 {
	if a == nil {
		return nil
	}
	id := a.ID
	return &id
}

// RegisterRequest представляет тело запроса на регистрацию пользователя.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest представляет тело запроса на вход.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse представляет тело ответа при успешном входе.
type LoginResponse struct {
	Token string `json:"token"`
}
