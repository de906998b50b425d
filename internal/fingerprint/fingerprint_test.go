package fingerprint_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/fingerprint"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("диск недоступен")
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    fingerprint.Algorithm
		wantErr bool
	}{
		{"Пустое имя - по умолчанию", "", fingerprint.SHA256, false},
		{"SHA-256", "SHA-256", fingerprint.SHA256, false},
		{"Псевдоним sha256", "sha256", fingerprint.SHA256, false},
		{"SHA3-256", "SHA3-256", fingerprint.SHA3, false},
		{"Псевдоним SHA3", "sha3", fingerprint.SHA3, false},
		{"BLAKE2B", "blake2b", fingerprint.BLAKE2, false},
		{"Неизвестный", "MD5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fingerprint.ParseAlgorithm(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, fingerprint.ErrUnsupportedAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute_KnownVectors(t *testing.T) {
	tests := []struct {
		alg  fingerprint.Algorithm
		want string
	}{
		{fingerprint.SHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{fingerprint.SHA3, "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"},
		{fingerprint.BLAKE2, "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d1" +
			"7d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923"},
	}
	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			fp, err := fingerprint.Compute(strings.NewReader("abc"), tt.alg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fp.Hash)
			assert.Equal(t, tt.alg.String(), fp.Algorithm)
			assert.Len(t, fp.Hash, tt.alg.Size()*2)
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	content := bytes.Repeat([]byte("документ"), 10000)
	first, err := fingerprint.Compute(bytes.NewReader(content), fingerprint.SHA256)
	require.NoError(t, err)
	second, err := fingerprint.Compute(bytes.NewReader(content), fingerprint.SHA256)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestVerify(t *testing.T) {
	content := []byte("Договор поставки N 42")
	fp, err := fingerprint.Compute(bytes.NewReader(content), fingerprint.SHA3)
	require.NoError(t, err)

	t.Run("Совпадение", func(t *testing.T) {
		res, err := fingerprint.Verify(bytes.NewReader(content), fp.Hash, fingerprint.SHA3)
		require.NoError(t, err)
		assert.True(t, res.Verified)
		assert.Equal(t, fp.Hash, res.CurrentHash)
	})

	t.Run("Регистр не важен", func(t *testing.T) {
		res, err := fingerprint.Verify(bytes.NewReader(content), strings.ToUpper(fp.Hash), fingerprint.SHA3)
		require.NoError(t, err)
		assert.True(t, res.Verified)
	})

	t.Run("Изменение одного байта", func(t *testing.T) {
		mutated := bytes.Clone(content)
		mutated[0] ^= 0x01
		res, err := fingerprint.Verify(bytes.NewReader(mutated), fp.Hash, fingerprint.SHA3)
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.NotEqual(t, fp.Hash, res.CurrentHash)
	})

	t.Run("Ошибка чтения", func(t *testing.T) {
		_, err := fingerprint.Verify(failingReader{}, fp.Hash, fingerprint.SHA3)
		require.ErrorIs(t, err, fingerprint.ErrSourceUnavailable)
	})
}

func TestHashText(t *testing.T) {
	h, err := fingerprint.HashText("abc", fingerprint.SHA256)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)

	_, err = fingerprint.HashText("abc", fingerprint.Algorithm("CRC32"))
	require.ErrorIs(t, err, fingerprint.ErrUnsupportedAlgorithm)
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "ba7816bf8f01cfea", fingerprint.Prefix("BA7816BF8F01CFEA414140DE5DAE2223"))
	assert.Equal(t, "abc", fingerprint.Prefix("abc"))
}

func TestValidateHex(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	tests := []struct {
		name    string
		fp      models.Fingerprint
		wantErr error
	}{
		{"SHA-256 корректный", models.Fingerprint{Algorithm: "SHA-256", Hash: strings.ToUpper(valid)}, nil},
		{"Алгоритм по умолчанию", models.Fingerprint{Hash: valid}, nil},
		{"Неверная длина для BLAKE2", models.Fingerprint{Algorithm: "BLAKE2", Hash: valid}, fingerprint.ErrInvalidDigest},
		{"Не hex", models.Fingerprint{Algorithm: "SHA-256", Hash: strings.Repeat("zz", 32)}, fingerprint.ErrInvalidDigest},
		{"Неизвестный алгоритм", models.Fingerprint{Algorithm: "MD5", Hash: valid}, fingerprint.ErrUnsupportedAlgorithm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fingerprint.ValidateHex(tt.fp)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, valid, got.Hash)
			assert.Equal(t, "SHA-256", got.Algorithm)
		})
	}
}

func TestHasher_WithTeeReader(t *testing.T) {
	content := "потоковое содержимое"
	h, err := fingerprint.NewHasher(fingerprint.BLAKE2)
	require.NoError(t, err)

	var sink bytes.Buffer
	_, err = sink.ReadFrom(io.TeeReader(strings.NewReader(content), h))
	require.NoError(t, err)

	direct, err := fingerprint.Compute(strings.NewReader(content), fingerprint.BLAKE2)
	require.NoError(t, err)
	assert.Equal(t, direct, h.Fingerprint())
	assert.Equal(t, int64(len(content)), h.Written())
	assert.Equal(t, content, sink.String())

	_, err = fingerprint.NewHasher(fingerprint.Algorithm("MD5"))
	require.ErrorIs(t, err, fingerprint.ErrUnsupportedAlgorithm)
}
