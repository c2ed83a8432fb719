// cmd/engine wires every subsystem together, grounded on main.go's
// bootstrap order (load env, build services, start background workers,
// serve HTTP, block until signaled) generalized from whale-radar's
// exchange-feed fan-out into the copy-trading engine's book/bias/position
// composition.
package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"

	"predatorbook/internal/adaptivev"
	"predatorbook/internal/advisory"
	"predatorbook/internal/bias"
	"predatorbook/internal/bookresolver"
	"predatorbook/internal/clob"
	"predatorbook/internal/clobtypes"
	"predatorbook/internal/config"
	"predatorbook/internal/controlloop"
	"predatorbook/internal/cooldown"
	"predatorbook/internal/decision"
	"predatorbook/internal/diagnostics"
	"predatorbook/internal/evtracker"
	"predatorbook/internal/execution"
	"predatorbook/internal/hedgepolicy"
	"predatorbook/internal/logging"
	"predatorbook/internal/metrics"
	"predatorbook/internal/notify"
	"predatorbook/internal/onchain"
	"predatorbook/internal/position"
	"predatorbook/internal/reserve"
	"predatorbook/internal/riskguard"
	"predatorbook/internal/storage"
)

func main() {
	log := logging.NewConsole("engine")
	log.Info("engine starting", nil)

	cfg, warnings := config.Load()
	logging.SetLevel(cfg.LogLevel)
	for _, w := range warnings {
		log.Warn(w, nil)
	}

	ledger, err := storage.Open(cfg.SqlitePath)
	if err != nil {
		log.Error("open trade ledger", err, nil)
		os.Exit(1)
	}
	defer ledger.Close()

	reg := metrics.New(prometheus.DefaultRegisterer)
	_ = reg

	restClient, err := clob.New("https://clob.polymarket.com", cfg.WalletPrivateKey, "", 10*time.Second)
	if err != nil {
		log.Error("build clob rest client", err, nil)
		os.Exit(1)
	}
	wsCache := clob.NewWSCache("wss://ws-subscriptions-clob.polymarket.com/ws/market", log.With("ws"))
	resolver := bookresolver.New(wsCache, restClient, log.With("bookresolver"))

	decisionCfg := decision.DefaultConfig()
	decisionCfg.MaxTradeUsd = cfg.MaxTradeUsd
	decisionCfg.TradeFraction = cfg.TradeFraction
	decisionCfg.MaxDeployedFractionTotal = cfg.MaxDeployedFractionTotal
	decisionCfg.EntryBandCents = cfg.EntryBandCents
	decisionCfg.TPCents = cfg.TPCents
	decisionCfg.HedgeTriggerCents = cfg.HedgeTriggerCents
	decisionCfg.MaxAdverseCents = cfg.MaxAdverseCents
	decisionCfg.MaxHoldSeconds = cfg.MaxHoldSeconds
	decisionCfg.EntryBufferCents = cfg.EntryBufferCents
	decisionCfg.MinEntryCents = cfg.MinEntryCents
	decisionCfg.MaxEntryCents = cfg.MaxEntryCents
	decisionCfg.PreferredLowCents = cfg.PreferredEntryLowCents
	decisionCfg.PreferredHighCents = cfg.PreferredEntryHighCents
	decisionCfg.MinSpreadCents = cfg.MinSpreadCents
	decisionCfg.MinDepthUsdAtExit = cfg.MinDepthUsdAtExit
	decisionCfg.MinTradesLastX = cfg.MinTradesLastX
	decisionCfg.MinBookUpdatesLastX = cfg.MinBookUpdatesLastX
	decisionEngine := decision.New(decisionCfg)

	posCfg := position.DefaultConfig()
	posCfg.TPCents = cfg.TPCents
	posCfg.HedgeTriggerCents = cfg.HedgeTriggerCents
	posCfg.MaxAdverseCents = cfg.MaxAdverseCents
	posManager := position.New(posCfg)

	evCfg := evtracker.DefaultConfig()
	evCfg.RollingWindowTrades = cfg.RollingWindowTrades
	evCfg.ChurnCostCents = cfg.ChurnCostCentsEstimate
	evCfg.MinEVCents = cfg.MinEVCents
	evCfg.MinProfitFactor = cfg.MinProfitFactor
	evCfg.PauseDuration = time.Duration(cfg.PauseSeconds) * time.Second
	evTracker := evtracker.New(evCfg)

	adaptiveEngine := adaptivev.New(adaptivev.DefaultConfig())
	hedgePolicy := hedgepolicy.New(hedgepolicy.DefaultConfig())
	reserveMgr := reserve.New(reserve.DefaultConfig())

	riskCfg := riskguard.DefaultConfig()
	riskGuard := riskguard.New(riskCfg)

	cooldownMgr := cooldown.New()

	biasCfg := bias.DefaultConfig()
	biasCfg.WindowSeconds = cfg.BiasWindowSeconds
	biasCfg.MinNetUsd = cfg.BiasMinNetUsd
	biasCfg.MinTrades = cfg.BiasMinTrades
	biasCfg.StaleSeconds = cfg.BiasStaleSeconds
	biasCfg.CopyAnyWhaleBuy = cfg.CopyAnyWhaleBuy
	biasAcc := bias.New(biasCfg)

	gammaMeta := clob.NewGammaMetadata(cfg.GammaAPIBaseURL, 10*time.Second)
	scanner := clob.NewGammaScanner(cfg.GammaAPIBaseURL, cfg.ScanMarketLimit, time.Duration(cfg.ScanRefreshSeconds)*time.Second, 10*time.Second)
	leaderboard := clob.NewLeaderboardFeed(cfg.DataAPIBaseURL, cfg.LeaderboardWallets, time.Duration(cfg.LeaderboardPollSeconds)*time.Second, 10*time.Second)

	execCfg := execution.DefaultConfig()
	execEngine := execution.New(execCfg, restClient, nil, gammaMeta, decisionEngine, posManager, evTracker, hedgePolicy, log.With("execution"))

	advisor := advisory.New(posManager, nil)

	telegram := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	if telegram != nil {
		posManager.AddListener(telegram.OnTransition)
		telegram.NotifyBotStart()
		defer telegram.NotifyBotStop()
	}

	midPriceOf := func(ctx context.Context, tokenID string) (float64, bool) {
		result := resolver.ResolveHealthyBook(ctx, tokenID, "price_lookup", cfg.MinSpreadCents)
		if !result.Success {
			return 0, false
		}
		mid := float64(result.Snapshot.BestBidCents+result.Snapshot.BestAskCents) / 2
		return mid, mid > 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var walletBalance controlloop.WalletBalance
	var redeemer controlloop.Redeemer
	var externalPositions controlloop.ExternalPositionSource

	if cfg.WalletPrivateKey != "" && cfg.PolygonRPCURL != "" {
		ctfAddr := common.HexToAddress(cfg.CTFContractAddr)
		usdcAddr := common.HexToAddress(cfg.USDCContractAddr)

		key, keyErr := crypto.HexToECDSA(cfg.WalletPrivateKey)
		if keyErr != nil {
			log.Warn("onchain monitor unavailable", map[string]any{"error": keyErr.Error()})
		} else {
			walletAddr := crypto.PubkeyToAddress(key.PublicKey)

			monitor, err := onchain.Dial(ctx, cfg.PolygonRPCURL, walletAddr, ctfAddr, usdcAddr, 15*time.Second)
			if err != nil {
				log.Warn("onchain monitor unavailable", map[string]any{"error": err.Error()})
			} else {
				monitor.SetPriceSource(onchain.PriceSource(midPriceOf))
				walletBalance = monitor
				externalPositions = monitor

				minPOLWei, ok := new(big.Int).SetString(cfg.MinPOLBalanceWei, 10)
				if !ok {
					minPOLWei = big.NewInt(1e18)
				}
				rd, err := onchain.NewRedeemer(monitor.Client(), cfg.WalletPrivateKey, ctfAddr, usdcAddr, minPOLWei, gammaMeta, posManager)
				if err != nil {
					log.Warn("redeemer unavailable", map[string]any{"error": err.Error()})
				} else {
					redeemer = rd
				}

				watchedTokens := scanner.CandidateTokens(ctx)
				go monitor.Run(ctx, watchedTokens, nil, onchain.PriceSource(midPriceOf), cfg.WhaleThresholdUsd)

				go func() {
					for evt := range monitor.WhaleTrades() {
						biasAcc.Ingest(bias.LeaderboardTrade{
							Wallet:     evt.Wallet.Hex(),
							TokenID:    evt.TokenID,
							Side:       clobtypes.LONG, // the wallet is receiving the outcome token, i.e. buying it
							SizeUsd:    evt.SizeUsd,
							PriceCents: evt.PriceCents,
							Timestamp:  evt.Timestamp,
						})
					}
				}()

				defer monitor.Close()
			}
		}
	}

	go leaderboard.Run(ctx, biasAcc)

	loop := controlloop.New(controlloop.Deps{
		Log:               log.With("controlloop"),
		Resolver:          resolver,
		Decision:          decisionEngine,
		Positions:         posManager,
		Execution:         execEngine,
		Bias:              biasAcc,
		Cooldowns:         cooldownMgr,
		EV:                evTracker,
		Adaptive:          adaptiveEngine,
		Reserve:           reserveMgr,
		Risk:              riskGuard,
		Hedge:             hedgePolicy,
		Advisor:           advisor,
		Ledger:            ledger,
		Notifier:          telegram,
		Wallet:            walletBalance,
		Redeem:            redeemer,
		Scan:              scanner,
		ExternalPositions: externalPositions,
		Subscribe:         wsCache.Subscribe,
		Unsubscribe:       wsCache.Unsubscribe,
	})
	if cfg.LiquidationMode == "all" || cfg.LiquidationMode == "losing" {
		loop.SetLiquidationMode(true)
	}

	diagServer := diagnostics.New(cfg.DiagnosticsAddr, loop)

	go wsCache.Run(ctx)
	go func() {
		if err := diagServer.ListenAndServe(); err != nil {
			log.Error("diagnostics server stopped", err, nil)
		}
	}()

	go loop.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received", nil)
	cancel()
	time.Sleep(500 * time.Millisecond)
}
