// Package adaptivev implements the adaptive EV engine (spec.md §4.C4):
// EWMAs of win/loss/win-rate/churn replacing evtracker's static defaults
// once enough live trade data has accumulated. Grounded on trend_analyzer.go's
// calculateEMA (the teacher already has an EMA helper for price trend; this
// reuses the same smoothing idea for trade-outcome statistics instead of
// price).
package adaptivev

import (
	"math"
	"time"
)

// ewma is a single exponentially-weighted moving average with its own decay
// and a running variance estimate for the stability gate.
type ewma struct {
	alpha       float64
	value       float64
	variance    float64
	initialized bool
}

func newEWMA(alpha float64) *ewma {
	return &ewma{alpha: alpha}
}

func (e *ewma) update(x float64) {
	if !e.initialized {
		e.value = x
		e.variance = 0
		e.initialized = true
		return
	}
	delta := x - e.value
	e.value += e.alpha * delta
	// Welford-style EWMA variance.
	e.variance = (1 - e.alpha) * (e.variance + e.alpha*delta*delta)
}

// normalizedVariance is the standard deviation relative to the mean magnitude, used for
// the stability gate. Returns 0 (perfectly stable) if the mean is zero.
func (e *ewma) normalizedVariance() float64 {
	if e.value == 0 {
		return 0
	}
	return math.Sqrt(e.variance) / math.Abs(e.value)
}

// Config holds the thresholds named in spec.md §4.C4.
type Config struct {
	MinSampleSize       int     // default 30
	MinNotionalUsd      float64 // default 500
	MinWinLossEach      int     // default 5
	StabilityThreshold  float64 // normalized variance must be below this
	FullThresholdCents  float64
	MinProfitFactor     float64
	MinConfidence       float64
	ReducedSizeFactor   float64
	ChurnCentsStatic    float64
	AvgWinCentsStatic   float64
	AvgLossCentsStatic  float64
	WinAlpha            float64
	LossAlpha           float64
	WinRateAlpha        float64
	ChurnAlpha          float64
	PauseDuration       time.Duration
}

// DefaultConfig mirrors the static fallback in evtracker.DefaultConfig.
func DefaultConfig() Config {
	return Config{
		MinSampleSize:      30,
		MinNotionalUsd:     500,
		MinWinLossEach:     5,
		StabilityThreshold: 0.35,
		FullThresholdCents: 2,
		MinProfitFactor:    1.1,
		MinConfidence:      0.5,
		ReducedSizeFactor:  0.35,
		ChurnCentsStatic:   2,
		AvgWinCentsStatic:  14,
		AvgLossCentsStatic: 9,
		WinAlpha:           0.1,
		LossAlpha:          0.1,
		WinRateAlpha:       0.08,
		ChurnAlpha:         0.1,
		PauseDuration:      15 * time.Minute,
	}
}

// EntryDecisionResult is the result of evaluating whether/how large an
// entry should be sized, per spec.md §4.C4.
type EntryDecisionResult struct {
	SizeFactor   float64 // 0, ReducedSizeFactor, or 1
	EVCents      float64
	ProfitFactor float64
	Confidence   float64
	UsedAdaptive bool
}

// Engine tracks the adaptive EWMAs alongside sample counters.
type Engine struct {
	cfg Config

	winEWMA     *ewma
	lossEWMA    *ewma
	winRateEWMA *ewma
	churnEWMA   *ewma

	sampleCount   int
	notionalUsd   float64
	winCount      int
	lossCount     int
	pausedUntil   time.Time
	now           func() time.Time
}

// New creates an adaptive EV engine.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:         cfg,
		winEWMA:     newEWMA(cfg.WinAlpha),
		lossEWMA:    newEWMA(cfg.LossAlpha),
		winRateEWMA: newEWMA(cfg.WinRateAlpha),
		churnEWMA:   newEWMA(cfg.ChurnAlpha),
		now:         time.Now,
	}
}

// RecordTrade feeds a closed trade's outcome into the EWMAs.
func (e *Engine) RecordTrade(pnlCents int, notionalUsd float64, churnEstimateCents float64) {
	e.sampleCount++
	e.notionalUsd += notionalUsd
	isWin := 0.0
	if pnlCents > 0 {
		e.winCount++
		e.winEWMA.update(float64(pnlCents))
		isWin = 1.0
	} else if pnlCents < 0 {
		e.lossCount++
		e.lossEWMA.update(float64(-pnlCents))
	}
	e.winRateEWMA.update(isWin)
	e.churnEWMA.update(churnEstimateCents)

	if e.sampleCount >= e.cfg.MinSampleSize {
		result := e.Evaluate()
		if result.EVCents < 0 {
			e.pausedUntil = e.now().Add(e.cfg.PauseDuration)
		}
	}
}

// usingAdaptive reports whether enough data has accumulated and it is
// stable enough to switch off the static defaults.
func (e *Engine) usingAdaptive() bool {
	if e.sampleCount < e.cfg.MinSampleSize {
		return false
	}
	if e.notionalUsd < e.cfg.MinNotionalUsd {
		return false
	}
	if e.winCount < e.cfg.MinWinLossEach || e.lossCount < e.cfg.MinWinLossEach {
		return false
	}
	if e.winEWMA.normalizedVariance() >= e.cfg.StabilityThreshold {
		return false
	}
	if e.lossEWMA.normalizedVariance() >= e.cfg.StabilityThreshold {
		return false
	}
	return true
}

// Evaluate computes the current EntryDecisionResult.
func (e *Engine) Evaluate() EntryDecisionResult {
	adaptive := e.usingAdaptive()

	var winCents, lossCents, winRate, churnCents float64
	if adaptive {
		winCents = e.winEWMA.value
		lossCents = e.lossEWMA.value
		winRate = e.winRateEWMA.value
		churnCents = e.churnEWMA.value
	} else {
		winCents = e.cfg.AvgWinCentsStatic
		lossCents = e.cfg.AvgLossCentsStatic
		winRate = winCents / (winCents + lossCents) // neutral placeholder until real data
		churnCents = e.cfg.ChurnCentsStatic
	}

	evCents := winRate*winCents - (1-winRate)*lossCents - churnCents

	var profitFactor float64
	if lossCents == 0 {
		profitFactor = math.Inf(1)
	} else {
		profitFactor = (winRate * winCents) / ((1 - winRate) * lossCents)
	}

	confidence := 1.0
	if adaptive {
		confidence = 1 - math.Max(e.winEWMA.normalizedVariance(), e.lossEWMA.normalizedVariance())
		if confidence < 0 {
			confidence = 0
		}
	}

	result := EntryDecisionResult{
		EVCents:      evCents,
		ProfitFactor: profitFactor,
		Confidence:   confidence,
		UsedAdaptive: adaptive,
	}

	switch {
	case evCents <= 0:
		result.SizeFactor = 0
	case evCents < e.cfg.FullThresholdCents:
		result.SizeFactor = e.cfg.ReducedSizeFactor
	case profitFactor < e.cfg.MinProfitFactor:
		result.SizeFactor = e.cfg.ReducedSizeFactor
	case confidence < e.cfg.MinConfidence:
		result.SizeFactor = e.cfg.ReducedSizeFactor
	default:
		result.SizeFactor = 1
	}
	return result
}

// IsPaused reports whether the engine is in a post-negative-EV pause.
func (e *Engine) IsPaused() bool {
	return e.now().Before(e.pausedUntil)
}
