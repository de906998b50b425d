package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ReconnectingClient подключается к Fabric при первом обращении и повторяет
// подключение, пока оно не удастся. Ошибка подключения считается недоступностью
// реестра, поэтому частоту попыток ограничивает размыкатель шлюза.
type ReconnectingClient struct {
	cfg     FabricConfig
	connect func(FabricConfig, *zap.Logger) (Client, error)
	log     *zap.Logger

	mu     sync.Mutex
	client Client
}

// NewReconnectingClient создает клиент Fabric с отложенным подключением.
func NewReconnectingClient(cfg FabricConfig, logger *zap.Logger) *ReconnectingClient {
	return &ReconnectingClient{
		cfg: cfg,
		connect: func(cfg FabricConfig, logger *zap.Logger) (Client, error) {
			return NewFabricClient(cfg, logger)
		},
		log: logger.With(zap.String("component", "fabric_reconnect")),
	}
}

// Connect пробует подключиться сразу. Неудача не мешает работе: следующая попытка
// будет при очередном обращении к реестру.
func (c *ReconnectingClient) Connect() error {
	_, err := c.current()
	return err
}

func (c *ReconnectingClient) current() (Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := c.connect(c.cfg, c.log)
	if err != nil {
		c.log.Warn("Не удалось подключиться к Fabric", zap.Error(err))
		return nil, &Error{Kind: KindUnavailable, Op: "connect", Err: err}
	}
	c.client = client
	return client, nil
}

func (c *ReconnectingClient) Network() string {
	return c.cfg.Channel
}

func (c *ReconnectingClient) Mode() Mode {
	return ModeFabric
}

func (c *ReconnectingClient) SubmitRegistration(ctx context.Context, req RegistrationRequest) (*Receipt, error) {
	client, err := c.current()
	if err != nil {
		return nil, err
	}
	return client.SubmitRegistration(ctx, req)
}

func (c *ReconnectingClient) SubmitStateUpdate(ctx context.Context, req StateUpdateRequest) (*Receipt, error) {
	client, err := c.current()
	if err != nil {
		return nil, err
	}
	return client.SubmitStateUpdate(ctx, req)
}

func (c *ReconnectingClient) QueryTransaction(ctx context.Context, txID string) (*Receipt, error) {
	client, err := c.current()
	if err != nil {
		return nil, err
	}
	return client.QueryTransaction(ctx, txID)
}

func (c *ReconnectingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
