package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// SimulatedTxPrefix - префикс хешей синтезированных транзакций.
const SimulatedTxPrefix = "sim-"

// SimulationClient синтезирует детерминированные транзакции без обращения к сети.
// Хеш транзакции зависит только от сети, типа, документа и содержимого изменения.
type SimulationClient struct {
	network string
	now     func() time.Time
}

// NewSimulationClient создает клиент симуляции для указанной сети.
func NewSimulationClient(network string) *SimulationClient {
	return &SimulationClient{network: network, now: time.Now}
}

func (c *SimulationClient) Network() string {
	return c.network
}

func (c *SimulationClient) Mode() Mode {
	return ModeSimulation
}

func (c *SimulationClient) SubmitRegistration(_ context.Context, req RegistrationRequest) (*Receipt, error) {
	txID := c.txHash(models.TxTypeRegistration, req.DocumentID.String(),
		req.Fingerprint.Algorithm+":"+strings.ToLower(req.Fingerprint.Hash))
	return c.receipt(txID), nil
}

func (c *SimulationClient) SubmitStateUpdate(_ context.Context, req StateUpdateRequest) (*Receipt, error) {
	txID := c.txHash(models.TxTypeStateUpdate, req.DocumentID.String(),
		string(req.State)+":"+req.MetadataHash+":"+req.RequestID)
	return c.receipt(txID), nil
}

// QueryTransaction подтверждает только синтезированные транзакции: им нечего ждать от реестра.
func (c *SimulationClient) QueryTransaction(_ context.Context, txID string) (*Receipt, error) {
	if !IsSimulatedTx(txID) {
		return nil, &Error{Kind: KindNotFound, Op: "query", TxID: txID, Err: ErrTxNotFound}
	}
	return c.receipt(txID), nil
}

func (c *SimulationClient) Close() error {
	return nil
}

func (c *SimulationClient) txHash(txType models.LedgerTxType, documentID, subject string) string {
	h := sha256.New()
	for _, part := range []string{c.network, string(txType), documentID, subject} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return SimulatedTxPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *SimulationClient) receipt(txID string) *Receipt {
	return &Receipt{
		TxID:      txID,
		Timestamp: c.now().UTC(),
		Status:    models.TxStatusPending,
		Network:   c.network,
		Simulated: true,
	}
}

// IsSimulatedTx сообщает, что хеш принадлежит синтезированной транзакции.
func IsSimulatedTx(txID string) bool {
	return strings.HasPrefix(txID, SimulatedTxPrefix)
}
