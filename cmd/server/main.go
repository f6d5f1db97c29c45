package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperscape/coreserver/internal/anticheat"
	"github.com/hyperscape/coreserver/internal/app"
	"github.com/hyperscape/coreserver/internal/auth"
	"github.com/hyperscape/coreserver/internal/broadcast"
	"github.com/hyperscape/coreserver/internal/character"
	"github.com/hyperscape/coreserver/internal/config"
	"github.com/hyperscape/coreserver/internal/eventbridge"
	"github.com/hyperscape/coreserver/internal/facedirection"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/movement"
	"github.com/hyperscape/coreserver/internal/network"
	"github.com/hyperscape/coreserver/internal/players"
	"github.com/hyperscape/coreserver/internal/storage"
	"github.com/hyperscape/coreserver/internal/throttle"
	"github.com/hyperscape/coreserver/internal/tick"
	"github.com/hyperscape/coreserver/internal/trade"
	"github.com/hyperscape/coreserver/internal/world"
)

const ConfigPath = "config/server.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		cancel()
		_ = sig
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := config.ConfigPath(ConfigPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = config.ApplyEnv(cfg)

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	log.Info("coreserver starting", zap.String("env", cfg.NodeEnv), zap.Int("port", cfg.Network.Port))

	db, err := storage.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations applied")

	charStore := storage.NewStore[character.Character](db, "character")
	accountStore := storage.NewStore[auth.Account](db, "account")
	bankStore := storage.NewStore[eventbridge.BankDocument](db, "bank")
	shopStore := storage.NewStore[eventbridge.StoreDocument](db, "store")

	jwtMgr := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, 24*time.Hour)
	limiter := auth.NewIPRateLimiter(cfg.Auth.AnonymousRatePerMinute, cfg.Auth.AnonymousBurst, 10*time.Minute)
	authenticator := auth.New(nil, jwtMgr, limiter, accountStore, auth.Config{AdminCode: cfg.AdminCode, DevMode: cfg.DevMode()})

	registry := network.NewRegistry()
	sender := broadcast.NewManager(registry, registry)

	defaultSpawn := model.Vector3{X: 0, Y: 0, Z: 0}
	terrain := world.NewFlatTerrain(0)

	charLister := character.NewLister(charStore)
	handler := network.NewConnectionHandler(network.DefaultHandlerConfig(), registry, authenticator, charLister, terrain)

	aoi := world.NewAOIManager(cfg.AOI.CellSize, cfg.AOI.ViewDistance)
	entities := world.NewEntityRegistry()
	pm := players.NewManager()

	throttleTiers := make([]throttle.Tier, 0, len(cfg.Throttle.Tiers))
	for _, t := range cfg.Throttle.Tiers {
		throttleTiers = append(throttleTiers, throttle.Tier{MaxDistanceSquared: t.MaxDistanceSquared, IntervalTicks: t.IntervalTicks})
	}
	th := throttle.New(throttleTiers)
	optimized := broadcast.NewOptimizedBroadcaster(aoi, th, registry)

	selection := character.NewSelection(charStore, registry, sender, aoi, pm, entities, terrain, defaultSpawn, nil)

	mv := movement.NewManager(pm, terrain, optimized)
	face := facedirection.NewProcessor(pm, optimized)

	ac := anticheat.NewValidator(pm, terrain, optimized, cfg.AntiCheat, func(characterID, reason string) {
		log.Info("anticheat: kicking player", zap.String("characterId", characterID), zap.String("reason", reason))
		if socketID, ok := registry.SocketForPlayer(characterID); ok {
			if conn, ok := registry.Conn(socketID); ok {
				conn.Close()
			}
		}
	})

	tradeEmitter := app.TradeEventEmitter{Manager: sender}
	trades := trade.NewSystem(cfg.Trade, noopInventoryChecker{}, tradeEmitter, sender)

	bus := eventbridge.NewBus(log)
	areas := eventbridge.StaticAreaResolver{}
	bridge := eventbridge.New(bus, sender, pm, bankStore, shopStore, areas, log)

	scheduler := tick.New(cfg.Tick, pm, registry, optimized, mv, face, ac, bridge, trades, log)

	server := app.NewServer(cfg.Network, defaultSpawn, registry, handler, selection, charLister, charStore, mv, face, ac, trades, sender, bus, log)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Network.BindAddress, cfg.Network.Port),
		Handler: server.Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("tick scheduler starting", zap.Int("rateHz", cfg.Tick.RateHz))
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				limiter.Prune(now)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.DevMode() {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zcfg.Level = lvl
	}
	return zcfg.Build()
}

// noopInventoryChecker approves every trade offer with a positive
// quantity, without checking ownership. No inventory
// subsystem is in scope here (spec §1 Non-goals: item/inventory
// gameplay); a real InventoryChecker implementation slots in once one
// exists without touching trade.System's interface.
type noopInventoryChecker struct{}

func (noopInventoryChecker) Validate(playerID string, inventorySlot int, quantity int32) bool {
	return quantity > 0
}
