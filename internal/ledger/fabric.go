package ledger

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/models"
)

// Функции смарт-контракта реестра документов.
const (
	fnRegisterDocument     = "RegisterDocument"
	fnUpdateDocumentState  = "UpdateDocumentState"
	fnGetTransactionStatus = "GetTransactionStatus"
)

// FabricConfig - параметры подключения к Hyperledger Fabric Gateway.
type FabricConfig struct {
	PeerEndpoint  string // адрес пира, например "localhost:7051"
	GatewayPeer   string // имя хоста пира для проверки TLS
	TLSCertPath   string // сертификат CA пира
	CertPath      string // сертификат клиента (PEM)
	KeyPath       string // закрытый ключ клиента (PEM)
	MSPID         string
	Channel       string
	ChaincodeName string
	Timeout       time.Duration
}

// transactor - отправка и чтение транзакций контракта.
type transactor interface {
	submit(ctx context.Context, name string, args ...string) (*commitResult, error)
	evaluate(ctx context.Context, name string, args ...string) ([]byte, error)
}

type commitResult struct {
	txID        string
	blockNumber uint64
}

// FabricClient - клиент реестра Hyperledger Fabric.
type FabricClient struct {
	conn    *grpc.ClientConn
	gateway *client.Gateway
	tx      transactor
	network string
	now     func() time.Time
	log     *zap.Logger
}

// NewFabricClient подключается к шлюзу Fabric. Ошибка возвращается, если не удалось
// прочитать сертификаты или ключ либо установить соединение.
func NewFabricClient(cfg FabricConfig, logger *zap.Logger) (*FabricClient, error) {
	log := logger.With(zap.String("component", "fabric_client"))
	log.Info("Подключение к Fabric Gateway",
		zap.String("endpoint", cfg.PeerEndpoint),
		zap.String("channel", cfg.Channel),
		zap.String("chaincode", cfg.ChaincodeName),
	)

	conn, err := newGrpcConnection(cfg)
	if err != nil {
		return nil, err
	}

	id, err := newIdentity(cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	sign, err := newSign(cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	gw, err := client.Connect(
		id,
		client.WithSign(sign),
		client.WithClientConnection(conn),
		client.WithEvaluateTimeout(timeout),
		client.WithEndorseTimeout(timeout),
		client.WithSubmitTimeout(timeout),
		client.WithCommitStatusTimeout(timeout),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ошибка подключения к Fabric Gateway: %w", err)
	}

	contract := gw.GetNetwork(cfg.Channel).GetContract(cfg.ChaincodeName)
	log.Info("Клиент Fabric инициализирован")
	return &FabricClient{
		conn:    conn,
		gateway: gw,
		tx:      &gatewayTransactor{contract: contract},
		network: cfg.Channel,
		now:     time.Now,
		log:     log,
	}, nil
}

func newGrpcConnection(cfg FabricConfig) (*grpc.ClientConn, error) {
	certPEM, err := os.ReadFile(cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения TLS-сертификата пира: %w", err)
	}
	certificate, err := identity.CertificateFromPEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора TLS-сертификата пира: %w", err)
	}

	certPool := x509.NewCertPool()
	certPool.AddCert(certificate)
	transportCredentials := credentials.NewClientTLSFromCert(certPool, cfg.GatewayPeer)

	conn, err := grpc.NewClient(cfg.PeerEndpoint, grpc.WithTransportCredentials(transportCredentials))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания gRPC-соединения: %w", err)
	}
	return conn, nil
}

func newIdentity(cfg FabricConfig) (*identity.X509Identity, error) {
	certPEM, err := os.ReadFile(cfg.CertPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сертификата клиента: %w", err)
	}
	certificate, err := identity.CertificateFromPEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора сертификата клиента: %w", err)
	}
	id, err := identity.NewX509Identity(cfg.MSPID, certificate)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания идентичности клиента: %w", err)
	}
	return id, nil
}

func newSign(cfg FabricConfig) (identity.Sign, error) {
	keyPEM, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения закрытого ключа: %w", err)
	}
	privateKey, err := identity.PrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора закрытого ключа: %w", err)
	}
	sign, err := identity.NewPrivateKeySign(privateKey)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания функции подписи: %w", err)
	}
	return sign, nil
}

func (c *FabricClient) Network() string {
	return c.network
}

func (c *FabricClient) Mode() Mode {
	return ModeFabric
}

func (c *FabricClient) SubmitRegistration(ctx context.Context, req RegistrationRequest) (*Receipt, error) {
	res, err := c.tx.submit(ctx, fnRegisterDocument,
		req.DocumentID.String(),
		strings.ToLower(req.Fingerprint.Hash),
		req.Fingerprint.Algorithm,
		strconv.FormatInt(req.OwnerID, 10),
		req.FileName,
		req.RegisteredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, classify("register", res.id(), err)
	}
	return c.committed(res), nil
}

func (c *FabricClient) SubmitStateUpdate(ctx context.Context, req StateUpdateRequest) (*Receipt, error) {
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	res, err := c.tx.submit(ctx, fnUpdateDocumentState,
		req.DocumentID.String(),
		string(req.State),
		string(metadata),
	)
	if err != nil {
		return nil, classify("update_state", res.id(), err)
	}
	return c.committed(res), nil
}

// txStatusResponse - ответ функции GetTransactionStatus контракта.
type txStatusResponse struct {
	TxID        string `json:"txId"`
	Status      string `json:"status"`
	BlockNumber *int64 `json:"blockNumber"`
	Timestamp   string `json:"timestamp"`
}

func (c *FabricClient) QueryTransaction(ctx context.Context, txID string) (*Receipt, error) {
	raw, err := c.tx.evaluate(ctx, fnGetTransactionStatus, txID)
	if err != nil {
		return nil, classify("query", txID, err)
	}

	var resp txStatusResponse
	if err = json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Kind: KindRejected, Op: "query", TxID: txID,
			Err: fmt.Errorf("некорректный ответ контракта: %w", err)}
	}

	receipt := &Receipt{
		TxID:        txID,
		BlockNumber: resp.BlockNumber,
		Timestamp:   c.now().UTC(),
		Status:      parseTxStatus(resp.Status),
		Network:     c.network,
		Raw:         raw,
	}
	if ts, parseErr := time.Parse(time.RFC3339, resp.Timestamp); parseErr == nil {
		receipt.Timestamp = ts.UTC()
	}
	return receipt, nil
}

// Close закрывает шлюз и gRPC-соединение.
func (c *FabricClient) Close() error {
	var errs []error
	if c.gateway != nil {
		errs = append(errs, c.gateway.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}

func (c *FabricClient) committed(res *commitResult) *Receipt {
	block := int64(res.blockNumber) //nolint:gosec // номер блока Fabric помещается в int64
	return &Receipt{
		TxID:        res.txID,
		BlockNumber: &block,
		Timestamp:   c.now().UTC(),
		Status:      models.TxStatusConfirmed,
		Network:     c.network,
	}
}

func (r *commitResult) id() string {
	if r == nil {
		return ""
	}
	return r.txID
}

func parseTxStatus(s string) models.LedgerTxStatus {
	switch strings.ToUpper(s) {
	case "VALID", "CONFIRMED", "COMMITTED":
		return models.TxStatusConfirmed
	case "PENDING", "":
		return models.TxStatusPending
	default:
		return models.TxStatusFailed
	}
}

// classify сводит ошибки шлюза Fabric и gRPC к категориям реестра.
// Категория определяется по типу ошибки и коду статуса gRPC.
func classify(op, txID string, err error) error {
	if err == nil {
		return nil
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}

	if txID == "" {
		txID = transactionIDOf(err)
	}

	kind := KindRejected
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindUnavailable
	default:
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Canceled:
			kind = KindUnavailable
		case codes.NotFound:
			kind = KindNotFound
		case codes.AlreadyExists:
			kind = KindConflict
		}
	}
	return &Error{Kind: kind, Op: op, TxID: txID, Err: err}
}

func transactionIDOf(err error) string {
	var endorseErr *client.EndorseError
	if errors.As(err, &endorseErr) {
		return endorseErr.TransactionID
	}
	var submitErr *client.SubmitError
	if errors.As(err, &submitErr) {
		return submitErr.TransactionID
	}
	var statusErr *client.CommitStatusError
	if errors.As(err, &statusErr) {
		return statusErr.TransactionID
	}
	var commitErr *client.CommitError
	if errors.As(err, &commitErr) {
		return commitErr.TransactionID
	}
	return ""
}

// gatewayTransactor выполняет транзакции через контракт Fabric Gateway.
type gatewayTransactor struct {
	contract *client.Contract
}

func (t *gatewayTransactor) submit(ctx context.Context, name string, args ...string) (*commitResult, error) {
	proposal, err := t.contract.NewProposal(name, client.WithArguments(args...))
	if err != nil {
		return nil, err
	}
	res := &commitResult{txID: proposal.TransactionID()}

	transaction, err := proposal.EndorseWithContext(ctx)
	if err != nil {
		return res, err
	}
	commit, err := transaction.SubmitWithContext(ctx)
	if err != nil {
		return res, err
	}
	commitStatus, err := commit.StatusWithContext(ctx)
	if err != nil {
		return res, err
	}
	if !commitStatus.Successful {
		return res, &Error{Kind: KindRejected, Op: name, TxID: res.txID,
			Err: fmt.Errorf("транзакция не прошла валидацию: %s", commitStatus.Code)}
	}
	res.blockNumber = commitStatus.BlockNumber
	return res, nil
}

func (t *gatewayTransactor) evaluate(ctx context.Context, name string, args ...string) ([]byte, error) {
	proposal, err := t.contract.NewProposal(name, client.WithArguments(args...))
	if err != nil {
		return nil, err
	}
	return proposal.EvaluateWithContext(ctx)
}
