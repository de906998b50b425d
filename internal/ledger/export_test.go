package ledger

import "go.uber.org/zap"

// NewReconnectingClientWith подменяет подключение к Fabric в тестах.
func NewReconnectingClientWith(
	cfg FabricConfig,
	connect func(FabricConfig, *zap.Logger) (Client, error),
	logger *zap.Logger,
) *ReconnectingClient {
	c := NewReconnectingClient(cfg, logger)
	c.connect = connect
	return c
}
