package ledger_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/ledger"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// memTxRepo - репозиторий транзакций в памяти с уникальностью по хешу.
type memTxRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.LedgerTransaction
	// createErr, если задана, возвращается из Create.
	createErr error
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{rows: make(map[string]*models.LedgerTransaction)}
}

func (r *memTxRepo) Create(_ context.Context, tx *models.LedgerTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.rows[tx.TransactionHash]; ok {
		return repository.ErrTransactionExists
	}
	r.nextID++
	tx.ID = r.nextID
	tx.CreatedAt = time.Now().UTC()
	tx.UpdatedAt = tx.CreatedAt
	stored := *tx
	r.rows[tx.TransactionHash] = &stored
	return nil
}

func (r *memTxRepo) FindByDocumentAndType(
	_ context.Context,
	documentID uuid.UUID,
	txType models.LedgerTxType,
) (*models.LedgerTransaction, error) {
	for _, tx := range r.sorted() {
		if tx.DocumentID == documentID && tx.Type == txType && tx.Status != models.TxStatusFailed {
			found := tx
			return &found, nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

func (r *memTxRepo) GetByHash(_ context.Context, hash string) (*models.LedgerTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.rows[hash]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	found := *tx
	return &found, nil
}

func (r *memTxRepo) UpdateStatusByHash(
	_ context.Context,
	hash string,
	status models.LedgerTxStatus,
	blockNumber *int64,
	blockTimestamp *time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.rows[hash]
	if !ok {
		return repository.ErrTransactionNotFound
	}
	tx.Status = status
	if blockNumber != nil {
		tx.BlockNumber = blockNumber
	}
	if blockTimestamp != nil {
		tx.BlockTimestamp = blockTimestamp
	}
	return nil
}

func (r *memTxRepo) ListByDocument(_ context.Context, documentID uuid.UUID) ([]models.LedgerTransaction, error) {
	result := make([]models.LedgerTransaction, 0)
	for _, tx := range r.sorted() {
		if tx.DocumentID == documentID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (r *memTxRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memTxRepo) sorted() []models.LedgerTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]models.LedgerTransaction, 0, len(r.rows))
	for _, tx := range r.rows {
		list = append(list, *tx)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// stubClient - клиент реестра с настраиваемыми ответами и счетчиком вызовов.
type stubClient struct {
	calls     atomic.Int32
	submitErr error
	query     func(txID string) (*ledger.Receipt, error)
	block     int64
}

func (c *stubClient) Network() string { return "test-net" }

func (c *stubClient) Mode() ledger.Mode { return ledger.ModeFabric }

func (c *stubClient) SubmitRegistration(_ context.Context, req ledger.RegistrationRequest) (*ledger.Receipt, error) {
	return c.submit("reg-" + req.DocumentID.String())
}

func (c *stubClient) SubmitStateUpdate(_ context.Context, req ledger.StateUpdateRequest) (*ledger.Receipt, error) {
	return c.submit("upd-" + req.DocumentID.String() + "-" + string(req.State))
}

func (c *stubClient) submit(txID string) (*ledger.Receipt, error) {
	c.calls.Add(1)
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	c.block++
	block := c.block
	return &ledger.Receipt{
		TxID:        txID,
		BlockNumber: &block,
		Timestamp:   time.Now().UTC(),
		Status:      models.TxStatusConfirmed,
		Network:     "test-net",
	}, nil
}

func (c *stubClient) QueryTransaction(_ context.Context, txID string) (*ledger.Receipt, error) {
	c.calls.Add(1)
	if c.query == nil {
		return nil, &ledger.Error{Kind: ledger.KindNotFound, Op: "query", TxID: txID, Err: ledger.ErrTxNotFound}
	}
	return c.query(txID)
}

func (c *stubClient) Close() error { return nil }

func unavailableErr() error {
	return &ledger.Error{Kind: ledger.KindUnavailable, Op: "test", Err: ledger.ErrLedgerUnavailable}
}

func rejectedErr(txID string) error {
	return &ledger.Error{Kind: ledger.KindRejected, Op: "test", TxID: txID, Err: ledger.ErrLedgerRejected}
}

func newDocument() *models.Document {
	return &models.Document{
		ID:               uuid.New(),
		OwnerID:          1,
		OriginalFilename: "contract.pdf",
		Status:           models.StatusUploaded,
	}
}

var testFingerprint = models.Fingerprint{
	Algorithm: "SHA-256",
	Hash:      "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
}
