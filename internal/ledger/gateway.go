package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/fingerprint"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/metrics"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// Значения по умолчанию для политики доступности реестра.
const (
	DefaultTimeout          = 5 * time.Second
	DefaultFailureThreshold = 3
	DefaultCooldown         = 30 * time.Second
)

// Результаты обращений к реестру для метрик.
const (
	resultOK          = "ok"
	resultSimulated   = "simulated"
	resultRejected    = "rejected"
	resultUnavailable = "unavailable"
	resultCanceled    = "canceled"
)

// GatewayConfig - политика доступности реестра.
type GatewayConfig struct {
	Timeout time.Duration
	// FailureThreshold - число подряд идущих отказов из-за недоступности,
	// после которых реальный реестр пропускается на время Cooldown.
	FailureThreshold uint32
	Cooldown         time.Duration
}

// Gateway - шлюз реестра.
//
// Каждая запись сначала отправляется в реальный реестр с ограничением по времени.
// Если реестр недоступен (или размыкатель открыт), транзакция синтезируется
// клиентом симуляции и сохраняется так же, как настоящая. Отказ реестра по
// бизнес-причинам возвращается вызывающему как ErrLedgerRejected.
type Gateway struct {
	primary   Client
	simulator *SimulationClient
	breaker   *gobreaker.CircuitBreaker[*Receipt]
	txRepo    repository.LedgerTransactionRepository
	timeout   time.Duration
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewGateway создает шлюз. Если primary уже работает в режиме симуляции,
// размыкатель не используется и все транзакции синтезируются сразу.
func NewGateway(
	primary Client,
	txRepo repository.LedgerTransactionRepository,
	cfg GatewayConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	g := &Gateway{
		primary: primary,
		txRepo:  txRepo,
		timeout: cfg.Timeout,
		metrics: m,
		log:     logger.With(zap.String("component", "ledger_gateway")),
	}

	if sim, ok := primary.(*SimulationClient); ok {
		g.simulator = sim
		g.log.Warn("Реестр работает в режиме симуляции", zap.String("network", primary.Network()))
		return g
	}

	g.simulator = NewSimulationClient(primary.Network())
	g.breaker = gobreaker.NewCircuitBreaker[*Receipt](gobreaker.Settings{
		Name:        "ledger-" + primary.Network(),
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Размыкатель считает только недоступность реестра.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsUnavailable(err)
		},
		OnStateChange: g.onBreakerStateChange,
	})
	return g
}

func (g *Gateway) onBreakerStateChange(name string, from, to gobreaker.State) {
	g.log.Warn("Состояние размыкателя реестра изменилось",
		zap.String("breaker", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if g.metrics != nil {
		g.metrics.LedgerBreaker.WithLabelValues(name).Set(float64(to))
	}
}

// Network возвращает сеть реестра.
func (g *Gateway) Network() string {
	return g.primary.Network()
}

// Mode возвращает режим основного клиента.
func (g *Gateway) Mode() Mode {
	return g.primary.Mode()
}

// Register регистрирует отпечаток документа в реестре. Повторный вызов для того же
// документа возвращает ранее сохраненный результат без новой транзакции.
func (g *Gateway) Register(
	ctx context.Context,
	doc *models.Document,
	fp models.Fingerprint,
) (*models.LedgerOutcome, error) {
	existing, err := g.txRepo.FindByDocumentAndType(ctx, doc.ID, models.TxTypeRegistration)
	switch {
	case err == nil:
		g.log.Info("Документ уже зарегистрирован в реестре",
			zap.Stringer("document_id", doc.ID), zap.String("tx_hash", existing.TransactionHash))
		return outcomeFromTx(existing), nil
	case !errors.Is(err, repository.ErrTransactionNotFound):
		return nil, err
	}

	req := RegistrationRequest{
		DocumentID:   doc.ID,
		Fingerprint:  fp,
		OwnerID:      doc.OwnerID,
		FileName:     doc.OriginalFilename,
		RegisteredAt: time.Now().UTC(),
	}
	receipt, err := g.submit(ctx, "register",
		func(ctx context.Context) (*Receipt, error) { return g.primary.SubmitRegistration(ctx, req) },
		func() (*Receipt, error) { return g.simulator.SubmitRegistration(ctx, req) },
	)
	if err != nil {
		return nil, err
	}

	payload := registrationPayload(req, receipt)
	tx := newTransaction(doc.ID, models.TxTypeRegistration, receipt, payload)
	if err = g.persist(ctx, tx); err != nil {
		return nil, err
	}
	return outcomeFromReceipt(receipt), nil
}

// UpdateState отправляет транзакцию смены состояния документа. Результат сохраняется
// в журнале транзакций всегда, в том числе отклоненный (со статусом failed).
func (g *Gateway) UpdateState(
	ctx context.Context,
	doc *models.Document,
	state models.DocumentStatus,
	metadata map[string]string,
) (*models.LedgerOutcome, error) {
	metadataHash, err := metadataDigest(metadata)
	if err != nil {
		return nil, err
	}
	req := StateUpdateRequest{
		DocumentID:   doc.ID,
		State:        state,
		Metadata:     metadata,
		MetadataHash: metadataHash,
		RequestID:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
	}
	receipt, err := g.submit(ctx, "update_state",
		func(ctx context.Context) (*Receipt, error) { return g.primary.SubmitStateUpdate(ctx, req) },
		func() (*Receipt, error) { return g.simulator.SubmitStateUpdate(ctx, req) },
	)
	if err != nil {
		if errors.Is(err, ErrLedgerRejected) {
			g.persistRejected(ctx, req, err)
		}
		return nil, err
	}

	tx := newTransaction(doc.ID, models.TxTypeStateUpdate, receipt, stateUpdatePayload(req, receipt))
	if err = g.persist(ctx, tx); err != nil {
		return nil, err
	}
	return outcomeFromReceipt(receipt), nil
}

// QueryStatus возвращает состояние транзакции. Ошибки не возвращаются:
// недоступность реестра отражается в Success=false и Error.
func (g *Gateway) QueryStatus(ctx context.Context, txID, network string) *models.LedgerOutcome {
	if network == "" {
		network = g.Network()
	}
	failed := func(err error) *models.LedgerOutcome {
		return &models.LedgerOutcome{
			TxID:      txID,
			Network:   network,
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		}
	}

	row, err := g.txRepo.GetByHash(ctx, txID)
	if err != nil && !errors.Is(err, repository.ErrTransactionNotFound) {
		return failed(err)
	}
	if row != nil && row.Simulated {
		return outcomeFromTx(row)
	}
	if IsSimulatedTx(txID) {
		return failed(&Error{Kind: KindNotFound, Op: "query", TxID: txID, Err: ErrTxNotFound})
	}
	if g.breaker == nil {
		return failed(&Error{Kind: KindUnavailable, Op: "query", TxID: txID, Err: ErrLedgerUnavailable})
	}

	receipt, err := g.call(ctx, "query", func(ctx context.Context) (*Receipt, error) {
		return g.primary.QueryTransaction(ctx, txID)
	})
	if err != nil {
		return failed(err)
	}
	g.countCall("query", resultOK)

	if row != nil && receipt.Status != row.Status {
		// Подтверждения применяются по ключу transaction_hash.
		updateErr := g.txRepo.UpdateStatusByHash(ctx, txID, receipt.Status, receipt.BlockNumber, blockTime(receipt))
		if updateErr != nil {
			g.log.Warn("Не удалось обновить статус транзакции",
				zap.String("tx_hash", txID), zap.Error(updateErr))
		}
	}
	return outcomeFromReceipt(receipt)
}

// History возвращает транзакции документа в порядке создания.
func (g *Gateway) History(ctx context.Context, documentID uuid.UUID) ([]models.LedgerTransaction, error) {
	return g.txRepo.ListByDocument(ctx, documentID)
}

// Close закрывает основной клиент реестра.
func (g *Gateway) Close() error {
	return g.primary.Close()
}

// submit выполняет запись в реальный реестр и при его недоступности переключается на симуляцию.
// Отмена запроса вызывающей стороной возвращается как ошибка контекста без симуляции.
func (g *Gateway) submit(
	ctx context.Context,
	op string,
	attempt func(ctx context.Context) (*Receipt, error),
	simulate func() (*Receipt, error),
) (*Receipt, error) {
	if g.breaker == nil {
		g.countCall(op, resultSimulated)
		return simulate()
	}

	receipt, err := g.call(ctx, op, attempt)
	if err == nil {
		g.countCall(op, resultOK)
		return receipt, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !g.unavailable(err) {
		return nil, err
	}

	g.log.Warn("Реестр недоступен, транзакция будет синтезирована",
		zap.String("op", op), zap.Error(err))
	g.countCall(op, resultSimulated)
	return simulate()
}

// call выполняет обращение к реальному реестру через размыкатель с ограничением по времени.
func (g *Gateway) call(
	ctx context.Context,
	op string,
	fn func(ctx context.Context) (*Receipt, error),
) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		g.countCall(op, resultCanceled)
		return nil, err
	}

	receipt, err := g.breaker.Execute(func() (*Receipt, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		r, callErr := fn(callCtx)
		if callErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// Запрос отменен вызывающей стороной, это не отказ реестра.
				return nil, ctxErr
			}
			return nil, classify(op, "", callErr)
		}
		return r, nil
	})
	if err == nil {
		return receipt, nil
	}

	switch {
	case ctx.Err() != nil:
		g.countCall(op, resultCanceled)
	case g.unavailable(err):
		g.countCall(op, resultUnavailable)
	case errors.Is(err, ErrLedgerRejected):
		g.countCall(op, resultRejected)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &Error{Kind: KindUnavailable, Op: op, Err: err}
	}
	return nil, err
}

func (g *Gateway) unavailable(err error) bool {
	return IsUnavailable(err) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (g *Gateway) countCall(op, result string) {
	if g.metrics != nil {
		g.metrics.LedgerCalls.WithLabelValues(op, result).Inc()
	}
}

// persist сохраняет транзакцию. Повтор хеша транзакции - конфликт, а не сбой.
func (g *Gateway) persist(ctx context.Context, tx *models.LedgerTransaction) error {
	err := g.txRepo.Create(ctx, tx)
	if errors.Is(err, repository.ErrTransactionExists) {
		return &Error{Kind: KindConflict, Op: "persist", TxID: tx.TransactionHash, Err: err}
	}
	return err
}

func (g *Gateway) persistRejected(ctx context.Context, req StateUpdateRequest, cause error) {
	var lerr *Error
	txID := ""
	if errors.As(cause, &lerr) {
		txID = lerr.TxID
	}
	if txID == "" {
		txID = "rejected-" + uuid.NewString()
	}

	receipt := &Receipt{
		TxID:      txID,
		Timestamp: time.Now().UTC(),
		Status:    models.TxStatusFailed,
		Network:   g.Network(),
	}
	payload := stateUpdatePayload(req, receipt)
	payload["error"] = cause.Error()

	tx := newTransaction(req.DocumentID, models.TxTypeStateUpdate, receipt, payload)
	if err := g.persist(ctx, tx); err != nil {
		g.log.Error("Не удалось сохранить отклоненную транзакцию",
			zap.Stringer("document_id", req.DocumentID), zap.Error(err))
	}
}

func newTransaction(
	documentID uuid.UUID,
	txType models.LedgerTxType,
	receipt *Receipt,
	payload map[string]any,
) *models.LedgerTransaction {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return &models.LedgerTransaction{
		TransactionHash: receipt.TxID,
		DocumentID:      documentID,
		Network:         receipt.Network,
		BlockNumber:     receipt.BlockNumber,
		BlockTimestamp:  blockTime(receipt),
		Status:          receipt.Status,
		Type:            txType,
		Simulated:       receipt.Simulated,
		Payload:         raw,
	}
}

func registrationPayload(req RegistrationRequest, receipt *Receipt) map[string]any {
	payload := map[string]any{
		"document_id":   req.DocumentID.String(),
		"hash":          req.Fingerprint.Hash,
		"algorithm":     req.Fingerprint.Algorithm,
		"owner_id":      req.OwnerID,
		"file_name":     req.FileName,
		"registered_at": req.RegisteredAt.Format(time.RFC3339),
	}
	if len(receipt.Raw) > 0 {
		payload["ledger_response"] = json.RawMessage(receipt.Raw)
	}
	return payload
}

func stateUpdatePayload(req StateUpdateRequest, receipt *Receipt) map[string]any {
	payload := map[string]any{
		"document_id":   req.DocumentID.String(),
		"state":         string(req.State),
		"metadata":      req.Metadata,
		"metadata_hash": req.MetadataHash,
		"request_id":    req.RequestID,
		"timestamp":     req.Timestamp.Format(time.RFC3339),
	}
	if len(receipt.Raw) > 0 {
		payload["ledger_response"] = json.RawMessage(receipt.Raw)
	}
	return payload
}

// metadataDigest хеширует метаданные перехода. json.Marshal сортирует ключи map,
// поэтому одинаковые метаданные дают одинаковый дайджест.
func metadataDigest(metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	return fingerprint.HashText(string(raw), fingerprint.Default)
}

// blockTime возвращает время блока только для транзакций, попавших в блок.
func blockTime(r *Receipt) *time.Time {
	if r.BlockNumber == nil {
		return nil
	}
	ts := r.Timestamp
	return &ts
}

func outcomeFromReceipt(r *Receipt) *models.LedgerOutcome {
	return &models.LedgerOutcome{
		Success:     true,
		TxID:        r.TxID,
		BlockNumber: r.BlockNumber,
		Timestamp:   r.Timestamp,
		Simulated:   r.Simulated,
		Network:     r.Network,
		Status:      r.Status,
	}
}

func outcomeFromTx(tx *models.LedgerTransaction) *models.LedgerOutcome {
	ts := tx.CreatedAt
	if tx.BlockTimestamp != nil {
		ts = *tx.BlockTimestamp
	}
	return &models.LedgerOutcome{
		Success:     tx.Status != models.TxStatusFailed,
		TxID:        tx.TransactionHash,
		BlockNumber: tx.BlockNumber,
		Timestamp:   ts,
		Simulated:   tx.Simulated,
		Network:     tx.Network,
		Status:      tx.Status,
	}
}
