package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/adapters/events"
	"github.com/layer-3/ledgerlink/adapters/exchange"
	"github.com/layer-3/ledgerlink/adapters/identity"
	"github.com/layer-3/ledgerlink/adapters/lock"
	"github.com/layer-3/ledgerlink/adapters/metrics"
	"github.com/layer-3/ledgerlink/adapters/rpc"
	"github.com/layer-3/ledgerlink/adapters/store"
	"github.com/layer-3/ledgerlink/adapters/tokenizer"
	"github.com/layer-3/ledgerlink/adapters/vault"
	"github.com/layer-3/ledgerlink/config"
	"github.com/layer-3/ledgerlink/internal/logging"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/layer-3/ledgerlink/presenter"
	"github.com/layer-3/ledgerlink/service"
	transport "github.com/layer-3/ledgerlink/transport/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerlink: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session tokens are signed with a per-process key; sessions end on restart
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate session key: %w", err)
	}

	var (
		sessionStore ports.Store
		locker       ports.Locker
		publisher    message.Publisher
	)
	wmLogger := watermill.NewSlogLogger(logger.Slog())

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach Redis: %w", err)
		}

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}

		sessionStore = store.NewRedisStore(redisClient)
		locker = lock.NewRedisLocker(redisClient, cfg.OperationTimeout+cfg.LockWait)
		logger.Info(ctx, "using redis", "url", opts.Addr)
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		sessionStore = store.NewMemoryStore()
		locker = lock.NewMemoryLocker()
		logger.Warn(ctx, "REDIS_URL not set, sessions and locks are process-local")
	}
	defer publisher.Close()

	if cfg.RPCURL != "" {
		if err := rpc.VerifyChainID(ctx, cfg.RPCURL, cfg.Exchange.ChainID); err != nil {
			return err
		}
	}

	prom := metrics.NewPrometheus()
	eventPub := events.NewWatermillPublisher(publisher)

	exchangeClient := exchange.NewClient(exchange.Config{
		BaseURL:         cfg.Exchange.URL,
		ExchangeAddress: cfg.Exchange.ExchangeAddress(),
		RateLimit:       cfg.Exchange.RateLimit,
		Burst:           cfg.Exchange.Burst,
		Timeout:         cfg.Exchange.Timeout,
		Metrics:         prom,
	})

	funding, err := fundingSigner(ctx, cfg)
	if err != nil {
		return err
	}
	if funding == nil {
		logger.Warn(ctx, "no funding account configured, deposits are disabled")
	}

	provider := identity.NewCustodialProvider(
		tokenizer.NewJWTTokenizer(signKey),
		sessionStore,
		vault.NewMemoryVault(),
		eventPub,
		logger,
		cfg.SessionTTL,
		cfg.Exchange.WalletType,
	)
	sessions := service.NewSessionService(provider, logger)

	orchestrator := service.NewOrchestrator(exchangeClient, locker, eventPub, prom, logger, service.Settings{
		ExchangeAddress:  cfg.Exchange.ExchangeAddress(),
		TokenSymbol:      cfg.Exchange.TokenSymbol,
		TokenID:          cfg.Exchange.TokenID,
		DefaultFee:       cfg.Exchange.DefaultFeeAmount(),
		TradeValue:       cfg.Exchange.TradeAmount(),
		ValidityWindow:   cfg.Exchange.ValidityWindow,
		OperationTimeout: cfg.OperationTimeout,
		LockWait:         cfg.LockWait,
		OperationTTL:     cfg.OperationTTL,
		Funding:          funding,
		PeerAddress:      common.HexToAddress(cfg.Peer.Address),
		PeerAccountID:    cfg.Peer.AccountID,
	})

	registry := presenter.NewRegistry(sessions, orchestrator, logger)

	// Setup Gin router
	router := transport.SetupRouter(sessions, registry, prom.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
		logger.Info(ctx, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
	}

	return nil
}

// fundingSigner signs with the configured funding key, or through the RPC node
// when only the funding address is known
func fundingSigner(ctx context.Context, cfg *config.Config) (ports.Signer, error) {
	switch {
	case cfg.Funding.PrivateKey != "":
		signer, err := rpc.NewKeySignerFromHex(cfg.Funding.PrivateKey, cfg.Exchange.WalletType)
		if err != nil {
			return nil, fmt.Errorf("invalid funding private key: %w", err)
		}
		if cfg.Funding.Address != "" && signer.Address() != common.HexToAddress(cfg.Funding.Address) {
			return nil, fmt.Errorf("funding private key does not match funding address %s", cfg.Funding.Address)
		}
		return signer, nil
	case cfg.Funding.Address != "" && cfg.RPCURL != "":
		return rpc.DialRemoteSigner(ctx, cfg.RPCURL, common.HexToAddress(cfg.Funding.Address), cfg.Exchange.WalletType)
	default:
		return nil, nil
	}
}
