// Package ledger отвечает за взаимодействие с внешним реестром.
//
// Client - низкоуровневый клиент реестра (Fabric или симуляция), Gateway - шлюз,
// который добавляет таймауты, размыкатель, переход в режим симуляции и
// сохранение локальной истории транзакций.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// Mode - режим клиента реестра.
type Mode string

const (
	ModeFabric     Mode = "fabric"
	ModeSimulation Mode = "simulation"
)

// RegistrationRequest - данные для транзакции регистрации документа.
type RegistrationRequest struct {
	DocumentID   uuid.UUID
	Fingerprint  models.Fingerprint
	OwnerID      int64
	FileName     string
	RegisteredAt time.Time
}

// StateUpdateRequest - данные для транзакции смены состояния документа.
// RequestID различает повторные попытки одного и того же перехода.
type StateUpdateRequest struct {
	DocumentID   uuid.UUID
	State        models.DocumentStatus
	Metadata     map[string]string
	MetadataHash string
	RequestID    string
	Timestamp    time.Time
}

// Receipt - ответ реестра о транзакции.
type Receipt struct {
	TxID        string
	BlockNumber *int64
	Timestamp   time.Time
	Status      models.LedgerTxStatus
	Network     string
	Simulated   bool
	Raw         []byte // исходный ответ реестра, если есть
}

// Client - возможности клиента реестра.
type Client interface {
	Network() string
	Mode() Mode
	SubmitRegistration(ctx context.Context, req RegistrationRequest) (*Receipt, error)
	SubmitStateUpdate(ctx context.Context, req StateUpdateRequest) (*Receipt, error)
	QueryTransaction(ctx context.Context, txID string) (*Receipt, error)
	Close() error
}

// Kind - категория ошибки реестра.
type Kind int

const (
	// KindUnavailable - реестр недоступен (сеть, таймаут, перегрузка). Повтор имеет смысл.
	KindUnavailable Kind = iota + 1
	// KindRejected - реестр явно отклонил транзакцию. Повтор бесполезен.
	KindRejected
	// KindNotFound - транзакция не найдена в реестре.
	KindNotFound
	// KindConflict - транзакция с таким хешем уже существует.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRejected:
		return "rejected"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error - типизированная ошибка реестра.
type Error struct {
	Kind Kind
	Op   string
	TxID string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("реестр: %s: %s", e.Op, e.Kind)
	if e.TxID != "" {
		msg += " (tx " + e.TxID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать ошибку с сентинелами пакета через errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrLedgerUnavailable:
		return e.Kind == KindUnavailable
	case ErrLedgerRejected:
		return e.Kind == KindRejected
	case ErrTxNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

// KindOf возвращает категорию ошибки реестра.
func KindOf(err error) (Kind, bool) {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind, true
	}
	return 0, false
}

// IsUnavailable сообщает, что ошибка означает недоступность реестра.
func IsUnavailable(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindUnavailable
}

// Ошибки реестра.
var (
	ErrLedgerUnavailable = errors.New("реестр недоступен")
	ErrLedgerRejected    = errors.New("реестр отклонил транзакцию")
	ErrTxNotFound        = errors.New("транзакция не найдена в реестре")
	ErrConflict          = errors.New("конфликт транзакций")
)
