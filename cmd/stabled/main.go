package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stablecore/config"
	"stablecore/core/events"
	"stablecore/core/types"
	"stablecore/crypto"
	"stablecore/native/engine"
	"stablecore/native/engine/store"
	"stablecore/native/feed"
	"stablecore/native/token"
	"stablecore/observability"
	"stablecore/observability/logging"
	"stablecore/rpc"
	"stablecore/rpc/modules"
	"stablecore/storage"
)

// susdSymbol is the ticker of the synthetic dollar issued by the engine.
const susdSymbol = "SUSD"

func main() {
	configPath := flag.String("config", "./config.toml", "path to the stabled configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := logging.Setup("stabled", cfg.Environment)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "err", err, "dataDir", cfg.DataDir)
		os.Exit(1)
	}
	defer db.Close()

	custody := custodyAddress()

	symbols := make([]string, 0, len(cfg.Collateral))
	priceFeeds := make([]engine.PriceFeed, 0, len(cfg.Collateral))
	collateralTokens := make([]engine.CollateralToken, 0, len(cfg.Collateral))
	manualFeeds := make(map[string]*feed.Manual, len(cfg.Collateral))
	tokens := make(map[string]*token.Token, len(cfg.Collateral)+1)
	for _, entry := range cfg.Collateral {
		price, err := entry.InitialPrice()
		if err != nil {
			logger.Error("invalid collateral entry", "err", err)
			os.Exit(1)
		}
		manual := feed.NewManual(price, nil)
		ledger := token.New(db, entry.Symbol, custody)
		symbols = append(symbols, entry.Symbol)
		priceFeeds = append(priceFeeds, manual)
		collateralTokens = append(collateralTokens, ledger)
		manualFeeds[entry.Symbol] = manual
		tokens[entry.Symbol] = ledger
	}
	susd := token.New(db, susdSymbol, custody)
	tokens[susdSymbol] = susd

	eng, err := engine.New(engine.Config{
		AssetSymbols:     symbols,
		PriceFeeds:       priceFeeds,
		CollateralTokens: collateralTokens,
		DebtToken:        susd,
		State:            store.New(db),
		Emitter:          &logEmitter{logger: logger},
		ModuleAddress:    custody,
		MaxPriceAge:      cfg.MaxPriceAge(),
	})
	if err != nil {
		logger.Error("failed to construct engine", "err", err)
		os.Exit(1)
	}

	engineModule := modules.NewEngineModule(eng, manualFeeds, tokens)
	server := rpc.NewServer(engineModule, logger)

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("rpc server listening", "addr", cfg.RPCAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
	logger.Info("stabled stopped")
}

// custodyAddress derives the deterministic account holding system custody of
// deposited collateral and pulled debt tokens.
func custodyAddress() crypto.Address {
	digest := ethcrypto.Keccak256([]byte("stablecore/engine/custody"))
	return crypto.MustNewAddress(crypto.StablePrefix, digest[12:])
}

// logEmitter forwards committed engine events to the structured log and the
// event metrics counter.
type logEmitter struct {
	logger *slog.Logger
}

func (l *logEmitter) Emit(event events.Event) {
	observability.Events().RecordEvent(event.EventType())
	typed, ok := event.(interface{ Event() *types.Event })
	if !ok {
		l.logger.Info("engine event", "type", event.EventType())
		return
	}
	payload := typed.Event()
	attrs := make([]any, 0, 2+2*len(payload.Attributes))
	attrs = append(attrs, "type", payload.Type)
	for key, value := range payload.Attributes {
		attrs = append(attrs, key, value)
	}
	l.logger.Info("engine event", attrs...)
}
