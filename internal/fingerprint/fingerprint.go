// Package fingerprint вычисляет и сверяет отпечатки содержимого документов.
package fingerprint

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// Algorithm - каноническое имя алгоритма хеширования.
type Algorithm string

// Поддерживаемые алгоритмы.
const (
	SHA256 Algorithm = "SHA-256"
	SHA3   Algorithm = "SHA-3"  // SHA3-256
	BLAKE2 Algorithm = "BLAKE2" // BLAKE2b-512

	// Default используется, когда алгоритм не указан.
	Default = SHA256
)

// PrefixLength - длина префикса хеша, по которому индексируются документы.
const PrefixLength = 16

type algorithmSpec struct {
	newHash func() hash.Hash
	size    int // размер дайджеста в байтах
}

var registry = map[Algorithm]algorithmSpec{
	SHA256: {newHash: sha256.New, size: sha256.Size},
	SHA3:   {newHash: sha3.New256, size: 32},
	BLAKE2: {newHash: newBlake2b512, size: blake2b.Size},
}

var aliases = map[string]Algorithm{
	"SHA-256":  SHA256,
	"SHA256":   SHA256,
	"SHA-3":    SHA3,
	"SHA3":     SHA3,
	"SHA3-256": SHA3,
	"BLAKE2":   BLAKE2,
	"BLAKE2B":  BLAKE2,
}

func newBlake2b512() hash.Hash {
	// New512 возвращает ошибку только для ключа длиннее 64 байт.
	h, _ := blake2b.New512(nil)
	return h
}

// ParseAlgorithm приводит имя алгоритма к каноническому виду.
// Пустое имя означает алгоритм по умолчанию.
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return Default, nil
	}
	alg, ok := aliases[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, name)
	}
	return alg, nil
}

// Size возвращает длину дайджеста в байтах.
func (a Algorithm) Size() int {
	return registry[a].size
}

func (a Algorithm) String() string {
	return string(a)
}

func (a Algorithm) newHash() (hash.Hash, error) {
	entry, ok := registry[a]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
	return entry.newHash(), nil
}

// Hasher накапливает отпечаток по мере записи в него содержимого.
// Удобен вместе с io.TeeReader, когда байты одновременно сохраняются в хранилище.
type Hasher struct {
	alg     Algorithm
	h       hash.Hash
	written int64
}

// NewHasher создает Hasher для алгоритма.
func NewHasher(alg Algorithm) (*Hasher, error) {
	h, err := alg.newHash()
	if err != nil {
		return nil, err
	}
	return &Hasher{alg: alg, h: h}, nil
}

func (h *Hasher) Write(p []byte) (int, error) {
	n, err := h.h.Write(p)
	h.written += int64(n)
	return n, err
}

// Written возвращает количество обработанных байт.
func (h *Hasher) Written() int64 {
	return h.written
}

// Fingerprint возвращает отпечаток записанного содержимого.
func (h *Hasher) Fingerprint() models.Fingerprint {
	return models.Fingerprint{
		Algorithm: h.alg.String(),
		Hash:      hex.EncodeToString(h.h.Sum(nil)),
	}
}

// Compute потоково вычисляет отпечаток содержимого r.
func Compute(r io.Reader, alg Algorithm) (models.Fingerprint, error) {
	h, err := NewHasher(alg)
	if err != nil {
		return models.Fingerprint{}, err
	}
	if _, err = io.Copy(h, r); err != nil {
		return models.Fingerprint{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return h.Fingerprint(), nil
}

// HashText вычисляет hex-дайджест строки.
func HashText(content string, alg Algorithm) (string, error) {
	fp, err := Compute(strings.NewReader(content), alg)
	if err != nil {
		return "", err
	}
	return fp.Hash, nil
}

// Result - результат сверки содержимого с ожидаемым отпечатком.
type Result struct {
	Verified    bool
	CurrentHash string
}

// Verify пересчитывает отпечаток r и сравнивает его с expected без учета регистра.
// Ошибка чтения возвращается как ErrSourceUnavailable.
func Verify(r io.Reader, expected string, alg Algorithm) (Result, error) {
	fp, err := Compute(r, alg)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Verified:    Equal(fp.Hash, expected),
		CurrentHash: fp.Hash,
	}, nil
}

// Equal сравнивает два hex-дайджеста за постоянное время.
func Equal(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Prefix возвращает первые PrefixLength символов хеша в нижнем регистре.
func Prefix(hash string) string {
	hash = strings.ToLower(hash)
	if len(hash) <= PrefixLength {
		return hash
	}
	return hash[:PrefixLength]
}

// ValidateHex проверяет, что дайджест - корректная hex-строка нужной для алгоритма длины,
// и возвращает нормализованный отпечаток.
func ValidateHex(fp models.Fingerprint) (models.Fingerprint, error) {
	alg, err := ParseAlgorithm(fp.Algorithm)
	if err != nil {
		return models.Fingerprint{}, err
	}
	digest := strings.ToLower(strings.TrimSpace(fp.Hash))
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return models.Fingerprint{}, fmt.Errorf("%w: не hex-строка", ErrInvalidDigest)
	}
	if len(raw) != alg.Size() {
		return models.Fingerprint{}, fmt.Errorf("%w: длина %d байт, ожидалось %d для %s",
			ErrInvalidDigest, len(raw), alg.Size(), alg)
	}
	return models.Fingerprint{Algorithm: alg.String(), Hash: digest}, nil
}

// Ошибки модуля отпечатков.
var (
	ErrUnsupportedAlgorithm = errors.New("неподдерживаемый алгоритм хеширования")
	ErrSourceUnavailable    = errors.New("источник содержимого недоступен")
	ErrInvalidDigest        = errors.New("некорректный дайджест")
)
