// Package config generalizes the teacher's config/loader.go godotenv+
// os.Getenv pattern to every option spec.md §6 names, grouped the same way
// the spec groups them (capital, bands, liquidity, EV, bias, modes), plus
// the teacher's SecureLoad() quote/whitespace sanitization for secrets,
// kept verbatim as a helper since a prediction-market wallet private key
// carries the same private-key-in-env hazard as the teacher's Binance keys.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every recognized option, grouped per spec.md §6.
type Config struct {
	// Secrets
	ClobAPIKey    string
	ClobAPISecret string
	WalletPrivateKey string
	TelegramBotToken string
	TelegramChatID   string

	// Capital
	MaxTradeUsd              float64
	TradeFraction            float64
	MaxDeployedFractionTotal float64
	ReserveFraction          float64
	MinReserveUsd            float64

	// Bands
	EntryBandCents    float64
	TPCents           float64
	HedgeTriggerCents float64
	MaxAdverseCents   float64
	MaxHoldSeconds    float64
	EntryBufferCents  float64
	MinEntryCents     float64
	MaxEntryCents     float64
	PreferredEntryLowCents  float64
	PreferredEntryHighCents float64

	// Liquidity gates
	MinSpreadCents      int
	MinDepthUsdAtExit   float64
	MinTradesLastX      int
	MinBookUpdatesLastX int

	// EV
	RollingWindowTrades  int
	ChurnCostCentsEstimate float64
	MinEVCents           float64
	MinProfitFactor      float64
	PauseSeconds         int

	// Bias
	BiasWindowSeconds time.Duration
	BiasMinNetUsd     float64
	BiasMinTrades     int
	BiasStaleSeconds  time.Duration
	CopyAnyWhaleBuy   bool

	// Modes
	LiveTradingEnabled       bool
	LiquidationMode          string // off, losing, all
	LiquidationMaxSlippagePct float64

	// Ambient
	LogLevel       string
	DiagnosticsAddr string
	SqlitePath     string

	// On-chain
	PolygonRPCURL       string
	CTFContractAddr     string
	USDCContractAddr    string
	GammaAPIBaseURL     string
	DataAPIBaseURL      string
	LeaderboardWallets  []string
	LeaderboardPollSeconds int
	WhaleThresholdUsd   float64
	MinPOLBalanceWei    string
	ScanMarketLimit     int
	ScanRefreshSeconds  int
}

// Load reads .env then the process environment, applying the same defaults
// shape as the teacher's LoadConfig: typed parse with a safe fallback and a
// warning if the file is missing, logged by the caller before the
// structured logger exists (mirroring the teacher's bootstrap order).
func Load() (*Config, []string) {
	var warnings []string
	if err := godotenv.Load(); err != nil {
		warnings = append(warnings, "no .env file found, relying on process environment")
	}

	cfg := &Config{
		ClobAPIKey:       SecureLoad("CLOB_API_KEY"),
		ClobAPISecret:    SecureLoad("CLOB_API_SECRET"),
		WalletPrivateKey: SecureLoad("WALLET_PRIVATE_KEY"),
		TelegramBotToken: SecureLoad("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   SecureLoad("TELEGRAM_CHAT_ID"),

		MaxTradeUsd:              getFloat("MAX_TRADE_USD", 25),
		TradeFraction:            getFloat("TRADE_FRACTION", 0.05),
		MaxDeployedFractionTotal: getFloat("MAX_DEPLOYED_FRACTION_TOTAL", 0.80),
		ReserveFraction:          getFloat("RESERVE_FRACTION", 0.20),
		MinReserveUsd:            getFloat("MIN_RESERVE_USD", 25),

		EntryBandCents:          getFloat("ENTRY_BAND_CENTS", 2),
		TPCents:                 getFloat("TP_CENTS", 8),
		HedgeTriggerCents:       getFloat("HEDGE_TRIGGER_CENTS", 15),
		MaxAdverseCents:         getFloat("MAX_ADVERSE_CENTS", 30),
		MaxHoldSeconds:          getFloat("MAX_HOLD_SECONDS", 3600),
		EntryBufferCents:        getFloat("ENTRY_BUFFER_CENTS", 3),
		MinEntryCents:           getFloat("MIN_ENTRY_CENTS", 20),
		MaxEntryCents:           getFloat("MAX_ENTRY_CENTS", 80),
		PreferredEntryLowCents:  getFloat("PREFERRED_ENTRY_LOW_CENTS", 35),
		PreferredEntryHighCents: getFloat("PREFERRED_ENTRY_HIGH_CENTS", 65),

		MinSpreadCents:      getInt("MIN_SPREAD_CENTS", 6),
		MinDepthUsdAtExit:   getFloat("MIN_DEPTH_USD_AT_EXIT", 150),
		MinTradesLastX:      getInt("MIN_TRADES_LAST_X", 1),
		MinBookUpdatesLastX: getInt("MIN_BOOK_UPDATES_LAST_X", 1),

		RollingWindowTrades:    getInt("ROLLING_WINDOW_TRADES", 100),
		ChurnCostCentsEstimate: getFloat("CHURN_COST_CENTS_ESTIMATE", 2),
		MinEVCents:             getFloat("MIN_EV_CENTS", 0),
		MinProfitFactor:        getFloat("MIN_PROFIT_FACTOR", 1.0),
		PauseSeconds:           getInt("PAUSE_SECONDS", 900),

		BiasWindowSeconds: time.Duration(getInt("BIAS_WINDOW_SECONDS", 600)) * time.Second,
		BiasMinNetUsd:     getFloat("BIAS_MIN_NET_USD", 500),
		BiasMinTrades:     getInt("BIAS_MIN_TRADES", 2),
		BiasStaleSeconds:  time.Duration(getInt("BIAS_STALE_SECONDS", 300)) * time.Second,
		CopyAnyWhaleBuy:   getBool("COPY_ANY_WHALE_BUY", false),

		LiveTradingEnabled:        getBool("LIVE_TRADING_ENABLED", false),
		LiquidationMode:           getString("LIQUIDATION_MODE", "off"),
		LiquidationMaxSlippagePct: getFloat("LIQUIDATION_MAX_SLIPPAGE_PCT", 0.10),

		LogLevel:        getString("LOG_LEVEL", "info"),
		DiagnosticsAddr: getString("DIAGNOSTICS_ADDR", ":8090"),
		SqlitePath:      getString("SQLITE_PATH", "predatorbook.db"),

		PolygonRPCURL:          getString("POLYGON_RPC_URL", ""),
		CTFContractAddr:        getString("CTF_CONTRACT_ADDR", "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"),
		USDCContractAddr:       getString("USDC_CONTRACT_ADDR", "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
		GammaAPIBaseURL:        getString("GAMMA_API_BASE_URL", "https://gamma-api.polymarket.com"),
		DataAPIBaseURL:         getString("DATA_API_BASE_URL", "https://data-api.polymarket.com"),
		LeaderboardWallets:     getStringList("LEADERBOARD_WALLETS"),
		LeaderboardPollSeconds: getInt("LEADERBOARD_POLL_SECONDS", 30),
		WhaleThresholdUsd:      getFloat("WHALE_THRESHOLD_USD", 2000),
		MinPOLBalanceWei:       getString("MIN_POL_BALANCE_WEI", "1000000000000000000"),
		ScanMarketLimit:        getInt("SCAN_MARKET_LIMIT", 50),
		ScanRefreshSeconds:     getInt("SCAN_REFRESH_SECONDS", 60),
	}

	if cfg.ClobAPIKey == "" || cfg.ClobAPISecret == "" {
		warnings = append(warnings, "CLOB API credentials missing")
	}
	if cfg.WalletPrivateKey == "" && cfg.LiveTradingEnabled {
		warnings = append(warnings, "live trading enabled with no wallet private key configured")
	}

	return cfg, warnings
}

// SecureLoad reads an environment variable and strips the surrounding
// quotes/whitespace a copy-pasted secret commonly picks up, the same
// sanitization the teacher's Binance key loading relies on.
func SecureLoad(key string) string {
	v := os.Getenv(key)
	v = strings.TrimSpace(v)
	v = strings.Trim(v, `"'`)
	return v
}

func getString(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getStringList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
