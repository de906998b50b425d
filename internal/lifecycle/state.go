// Package lifecycle описывает допустимые переходы состояний документа.
//
// Состояния упорядочены: UPLOADED → REGISTERED → SIGNED → VERIFIED → SHARED.
// Движение возможно только вперед (пропуск промежуточных состояний разрешен).
// REVOKED достижимо из любого нетерминального состояния и является терминальным.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

var order = map[models.DocumentStatus]int{
	models.StatusUploaded:   0,
	models.StatusRegistered: 1,
	models.StatusSigned:     2,
	models.StatusVerified:   3,
	models.StatusShared:     4,
}

// Состояния, которые можно запросить через обновление состояния.
var targets = map[models.DocumentStatus]struct{}{
	models.StatusRegistered: {},
	models.StatusSigned:     {},
	models.StatusVerified:   {},
	models.StatusShared:     {},
	models.StatusRevoked:    {},
}

// IsTerminal сообщает, что из состояния нет переходов.
func IsTerminal(s models.DocumentStatus) bool {
	return s == models.StatusRevoked
}

// IsKnown сообщает, что состояние входит в жизненный цикл.
func IsKnown(s models.DocumentStatus) bool {
	if s == models.StatusRevoked {
		return true
	}
	_, ok := order[s]
	return ok
}

// CanTransition сообщает, допустим ли переход from → to.
func CanTransition(from, to models.DocumentStatus) bool {
	if !IsKnown(from) || !IsKnown(to) || IsTerminal(from) {
		return false
	}
	if to == models.StatusRevoked {
		return true
	}
	return order[to] > order[from]
}

// Validate возвращает ошибку, если переход недопустим.
func Validate(from, to models.DocumentStatus) error {
	if !IsKnown(to) {
		return fmt.Errorf("%w: %s", ErrUnknownState, to)
	}
	if IsTerminal(from) {
		return fmt.Errorf("%w: документ в терминальном состоянии %s", ErrInvalidTransition, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ParseTarget разбирает имя целевого состояния из запроса.
func ParseTarget(name string) (models.DocumentStatus, error) {
	s := models.DocumentStatus(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := targets[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, name)
	}
	return s, nil
}

// Ошибки жизненного цикла.
var (
	ErrUnknownState      = errors.New("неизвестное состояние документа")
	ErrInvalidTransition = errors.New("недопустимый переход состояния")
)
