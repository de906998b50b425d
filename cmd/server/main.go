package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/audit"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/config"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/handlers"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/identity"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/ledger"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/logger"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/metrics"
	appmiddleware "github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/middleware"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/repository"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/services"
	"github.com/IbtissamBenabid/BlockchainDocumentSigning-sub001/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// newPostgresDB вынесена в переменную для подмены в тестах.
var newPostgresDB = repository.NewPostgresDB

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db              *sqlx.DB
	redis           *redis.Client
	fileStorage     storage.FileStorage
	gateway         *ledger.Gateway
	identity        *identity.Service
	metrics         *metrics.Metrics
	authHandler     *handlers.AuthHandler
	documentHandler *handlers.DocumentHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка выполнения сервера: %v\n", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	flags, err := parseFlags(os.Args[0], os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	flags.apply(cfg)

	log, err := logger.New(cfg.Logging.Environment, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setupDependencies(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	defer deps.close(log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      setupRouter(deps, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(server, cfg.Server, log)
	}()

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Получен сигнал завершения, останавливаем сервер")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	return nil
}

func serve(server *http.Server, cfg config.ServerConfig, log *zap.Logger) error {
	var err error
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		log.Info("Запуск HTTPS-сервера",
			zap.String("addr", server.Addr),
			zap.String("cert_file", cfg.CertFile),
			zap.String("key_file", cfg.KeyFile),
		)
		err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		log.Warn("TLS не настроен, запуск HTTP-сервера", zap.String("addr", server.Addr))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка запуска сервера: %w", err)
	}
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(ctx context.Context, cfg *config.Config, log *zap.Logger) (*dependencies, error) {
	deps := &dependencies{metrics: metrics.New()}
	var err error

	// 1. Подключение к БД и схема
	deps.db, err = newPostgresDB(cfg.Database.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	if err = repository.Migrate(ctx, deps.db); err != nil {
		deps.close(log)
		return nil, err
	}

	// 2. Хранилище содержимого документов
	deps.fileStorage, err = newFileStorage(ctx, cfg.Storage, log)
	if err != nil {
		deps.close(log)
		return nil, err
	}

	// 3. Кэш идентичностей
	cache, err := deps.newIdentityCache(ctx, cfg.Redis, log)
	if err != nil {
		deps.close(log)
		return nil, err
	}

	// 4. Репозитории
	userRepo := repository.NewPostgresUserRepository(deps.db, log)
	docRepo := repository.NewPostgresDocumentRepository(deps.db, log)
	txRepo := repository.NewPostgresLedgerTransactionRepository(deps.db, log)
	verificationRepo := repository.NewPostgresVerificationRepository(deps.db, log)

	// 5. Реестр
	deps.gateway = ledger.NewGateway(newLedgerClient(cfg.Ledger, log), txRepo, ledger.GatewayConfig{
		Timeout:          cfg.Ledger.Timeout,
		FailureThreshold: cfg.Ledger.Breaker.FailureThreshold,
		Cooldown:         cfg.Ledger.Breaker.Cooldown,
	}, deps.metrics, log)

	// 6. Сервисы
	deps.identity, err = identity.NewService(userRepo, cache, identity.Config{
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
		CacheTTL:  cfg.Auth.IdentityCacheTTL,
	}, log)
	if err != nil {
		deps.close(log)
		return nil, err
	}
	recorder := audit.NewRecorder(verificationRepo, deps.metrics, log)
	registration := services.NewRegistrationService(docRepo, deps.fileStorage, deps.gateway, log)
	verification := services.NewVerificationService(
		docRepo, verificationRepo, deps.fileStorage, deps.gateway, recorder, deps.metrics,
		services.VerificationConfig{
			BulkMaxItems:    cfg.Verification.BulkMaxItems,
			BulkConcurrency: cfg.Verification.BulkConcurrency,
		},
		log,
	)

	// 7. Обработчики
	deps.authHandler = handlers.NewAuthHandler(deps.identity, log)
	deps.documentHandler = handlers.NewDocumentHandler(registration, verification, log)

	return deps, nil
}

func newFileStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (storage.FileStorage, error) {
	if cfg.Driver == config.StorageDriverMinio {
		fs, err := storage.NewMinioClient(ctx, storage.MinioConfig{
			Endpoint:        cfg.Minio.Endpoint,
			AccessKeyID:     cfg.Minio.AccessKey,
			SecretAccessKey: cfg.Minio.SecretKey,
			UseSSL:          cfg.Minio.UseSSL,
			BucketName:      cfg.Minio.Bucket,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
		}
		return fs, nil
	}
	fs, err := storage.NewLocalStorage(cfg.LocalRoot, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации локального хранилища: %w", err)
	}
	return fs, nil
}

func (d *dependencies) newIdentityCache(
	ctx context.Context,
	cfg config.RedisConfig,
	log *zap.Logger,
) (identity.Cache, error) {
	if cfg.Addr == "" {
		log.Info("Redis не настроен, кэш идентичностей хранится в памяти")
		return identity.NewMemoryCache(), nil
	}
	d.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := d.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ошибка подключения к Redis %s: %w", cfg.Addr, err)
	}
	return identity.NewRedisCache(d.redis), nil
}

// newLedgerClient выбирает клиент реестра при запуске. Если Fabric недоступен при старте,
// подключение повторяется при следующих обращениях, а до тех пор транзакции синтезируются.
func newLedgerClient(cfg config.LedgerConfig, log *zap.Logger) ledger.Client {
	if cfg.Mode != config.LedgerModeFabric {
		return ledger.NewSimulationClient(cfg.Network)
	}
	fc := ledger.NewReconnectingClient(ledger.FabricConfig{
		PeerEndpoint:  cfg.Fabric.PeerEndpoint,
		GatewayPeer:   cfg.Fabric.GatewayPeer,
		TLSCertPath:   cfg.Fabric.TLSCertPath,
		CertPath:      cfg.Fabric.CertPath,
		KeyPath:       cfg.Fabric.KeyPath,
		MSPID:         cfg.Fabric.MSPID,
		Channel:       cfg.Fabric.Channel,
		ChaincodeName: cfg.Fabric.ChaincodeName,
		Timeout:       cfg.Timeout,
	}, log)
	if err := fc.Connect(); err != nil {
		log.Error("Не удалось подключиться к Fabric, до восстановления транзакции будут синтезированы",
			zap.Error(err))
	}
	return fc
}

func (d *dependencies) close(log *zap.Logger) {
	if d.gateway != nil {
		if err := d.gateway.Close(); err != nil {
			log.Warn("Ошибка закрытия клиента реестра", zap.Error(err))
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Warn("Ошибка закрытия соединения с Redis", zap.Error(err))
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			log.Warn("Ошибка закрытия соединения с БД", zap.Error(err))
		}
	}
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(deps *dependencies, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(appmiddleware.RequestLogger(log, deps.metrics))
	r.Use(chimiddleware.Recoverer)

	// --- Маршруты --- //
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})
	r.Handle("/metrics", deps.metrics.Handler())

	dh := deps.documentHandler
	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты
		r.Post("/register", deps.authHandler.Register)
		r.Post("/login", deps.authHandler.Login)
		r.With(appmiddleware.OptionalAuthenticator(deps.identity, log)).Get("/verify/{hash}", dh.VerifyByHash)

		// Приватные маршруты (требуют аутентификации)
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Authenticator(deps.identity, log))

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", dh.Upload)
				r.Post("/verify/bulk", dh.VerifyBulk)
				r.Route("/{id}", func(r chi.Router) {
					r.Post("/register", dh.Register)
					r.Post("/state", dh.UpdateState)
					r.Post("/verify", dh.Verify)
					r.Get("/history", dh.History)
					r.Get("/verifications", dh.Verifications)
				})
			})
		})
	})
	return r
}
