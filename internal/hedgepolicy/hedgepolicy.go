// Package hedgepolicy implements the adaptive hedge policy (spec.md
// §4.C5): per-token price-change volatility and a global velocity EWMA
// drive a three-regime (LOW/NORMAL/HIGH) adaptation of the hedge trigger,
// hedge ratio, and max-adverse-move bands. Grounded on trend_analyzer.go's
// CalculateATR/CalculateVelocity (the teacher's own volatility/velocity
// primitives for price series), re-aimed at hedge sizing instead of entry
// trend-gating.
package hedgepolicy

import (
	"math"
	"sort"
	"time"
)

// Regime is the current volatility/velocity classification.
type Regime string

const (
	RegimeLow    Regime = "LOW"
	RegimeNormal Regime = "NORMAL"
	RegimeHigh   Regime = "HIGH"
)

// priceObservation is one price sample for a token.
type priceObservation struct {
	priceCents float64
	at         time.Time
}

// Config holds the bounds and rates named in spec.md §4.C5.
type Config struct {
	HistoryWindow         time.Duration // 5 minutes
	MinObservationsAdapt  int           // 20
	MinSecondsBetweenAdapt time.Duration // 60s
	TriggerMinCents       float64
	TriggerMaxCents       float64
	RatioMin              float64
	RatioMax              float64
	MaxAdverseMinCents    float64
	MaxAdverseMaxCents    float64
	MaxChangePerInterval  float64 // 0.15
	FloorCentsChange      float64 // 0.01
	FloorRatioChange      float64 // 0.001
	EffectivenessWindow   int     // last 20 hedge outcomes
}

// DefaultConfig provides the bounds spec.md describes without prescribing
// exact numbers; chosen to keep trigger/ratio/max-adverse within sane
// bands for a cents-denominated binary market.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:          5 * time.Minute,
		MinObservationsAdapt:   20,
		MinSecondsBetweenAdapt: 60 * time.Second,
		TriggerMinCents:        3,
		TriggerMaxCents:        15,
		RatioMin:               0.25,
		RatioMax:               1.0,
		MaxAdverseMinCents:     15,
		MaxAdverseMaxCents:     40,
		MaxChangePerInterval:   0.15,
		FloorCentsChange:       0.01,
		FloorRatioChange:       0.001,
		EffectivenessWindow:    20,
	}
}

// hedgeOutcome records whether a past hedge decision was effective, tagged
// with the regime active at the time, for the ±0.05..0.1 ratio nudge.
type hedgeOutcome struct {
	regime      Regime
	wasEffective bool
}

// Policy tracks per-token price history plus global adaptation state.
type Policy struct {
	cfg Config
	now func() time.Time

	history map[string][]priceObservation

	velocityEWMA   float64 // cents/sec
	velocityInit   bool
	sigmaEWMA      map[string]float64
	sigmaInit      map[string]bool

	triggerCents   float64
	hedgeRatio     float64
	maxAdverseCents float64
	lastAdapt      time.Time
	observationCount int

	outcomes []hedgeOutcome
}

// New creates a hedge policy seeded at the midpoint of its bounds.
func New(cfg Config) *Policy {
	return &Policy{
		cfg:             cfg,
		now:             time.Now,
		history:         make(map[string][]priceObservation),
		sigmaEWMA:       make(map[string]float64),
		sigmaInit:       make(map[string]bool),
		triggerCents:    (cfg.TriggerMinCents + cfg.TriggerMaxCents) / 2,
		hedgeRatio:      (cfg.RatioMin + cfg.RatioMax) / 2,
		maxAdverseCents: (cfg.MaxAdverseMinCents + cfg.MaxAdverseMaxCents) / 2,
	}
}

// Observe records a new price sample for a token and updates the rolling
// sigma/velocity EWMAs, pruning observations outside the history window.
func (p *Policy) Observe(tok string, priceCents float64) {
	now := p.now()
	obs := append(p.history[tok], priceObservation{priceCents: priceCents, at: now})

	cutoff := now.Add(-p.cfg.HistoryWindow)
	filtered := obs[:0]
	for _, o := range obs {
		if o.at.After(cutoff) {
			filtered = append(filtered, o)
		}
	}
	p.history[tok] = filtered
	p.observationCount++

	if len(filtered) >= 2 {
		prev := filtered[len(filtered)-2]
		delta := priceCents - prev.priceCents
		dt := now.Sub(prev.at).Seconds()
		if dt > 0 {
			v := delta / dt
			if !p.velocityInit {
				p.velocityEWMA = v
				p.velocityInit = true
			} else {
				p.velocityEWMA += 0.2 * (v - p.velocityEWMA)
			}
		}
	}

	sigma := stddev(filtered)
	if !p.sigmaInit[tok] {
		p.sigmaEWMA[tok] = sigma
		p.sigmaInit[tok] = true
	} else {
		p.sigmaEWMA[tok] += 0.2 * (sigma - p.sigmaEWMA[tok])
	}

	p.maybeAdapt()
}

func stddev(obs []priceObservation) float64 {
	if len(obs) < 2 {
		return 0
	}
	var sum float64
	for _, o := range obs {
		sum += o.priceCents
	}
	mean := sum / float64(len(obs))
	var sq float64
	for _, o := range obs {
		d := o.priceCents - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(obs)-1))
}

// Regime classifies the current global volatility/velocity state.
func (p *Policy) Regime() Regime {
	avgSigma := p.avgSigma()
	velocity := math.Abs(p.velocityEWMA)
	switch {
	case avgSigma > 2.0 || velocity > 0.5:
		return RegimeHigh
	case avgSigma < 0.5 && velocity < 0.1:
		return RegimeLow
	default:
		return RegimeNormal
	}
}

func (p *Policy) avgSigma() float64 {
	if len(p.sigmaEWMA) == 0 {
		return 0
	}
	var sum float64
	for _, s := range p.sigmaEWMA {
		sum += s
	}
	return sum / float64(len(p.sigmaEWMA))
}

// maybeAdapt smooths trigger/ratio/max-adverse toward regime-driven targets,
// gated on observation count and elapsed time, and clamps the rate of
// change per spec.md.
func (p *Policy) maybeAdapt() {
	if p.observationCount < p.cfg.MinObservationsAdapt {
		return
	}
	now := p.now()
	if !p.lastAdapt.IsZero() && now.Sub(p.lastAdapt) < p.cfg.MinSecondsBetweenAdapt {
		return
	}
	p.lastAdapt = now

	regime := p.Regime()

	targetTrigger := p.triggerCents
	targetRatio := p.hedgeRatio
	switch regime {
	case RegimeHigh:
		targetTrigger = p.cfg.TriggerMinCents
		targetRatio = p.cfg.RatioMax
	case RegimeLow:
		targetTrigger = p.cfg.TriggerMaxCents
		targetRatio = p.cfg.RatioMin
	case RegimeNormal:
		targetTrigger = (p.cfg.TriggerMinCents + p.cfg.TriggerMaxCents) / 2
		targetRatio = (p.cfg.RatioMin + p.cfg.RatioMax) / 2
	}

	p.triggerCents = clampedStep(p.triggerCents, targetTrigger, p.cfg.MaxChangePerInterval, p.cfg.FloorCentsChange)
	p.triggerCents = clamp(p.triggerCents, p.cfg.TriggerMinCents, p.cfg.TriggerMaxCents)

	p.hedgeRatio = clampedStep(p.hedgeRatio, targetRatio, p.cfg.MaxChangePerInterval, p.cfg.FloorRatioChange)
	p.hedgeRatio = p.applyEffectivenessAdjustment(p.hedgeRatio, regime)
	p.hedgeRatio = clamp(p.hedgeRatio, p.cfg.RatioMin, p.cfg.RatioMax)

	p.maxAdverseCents = clamp(p.p90AdverseEstimate()*1.2, p.cfg.MaxAdverseMinCents, p.cfg.MaxAdverseMaxCents)
}

// applyEffectivenessAdjustment shifts the ratio ±0.05..0.1 based on the
// observed effectiveness rate within the current regime over the last
// EffectivenessWindow outcomes.
func (p *Policy) applyEffectivenessAdjustment(ratio float64, regime Regime) float64 {
	start := 0
	if len(p.outcomes) > p.cfg.EffectivenessWindow {
		start = len(p.outcomes) - p.cfg.EffectivenessWindow
	}
	var total, effective int
	for _, o := range p.outcomes[start:] {
		if o.regime != regime {
			continue
		}
		total++
		if o.wasEffective {
			effective++
		}
	}
	if total == 0 {
		return ratio
	}
	rate := float64(effective) / float64(total)
	switch regime {
	case RegimeLow:
		if rate < 0.4 {
			return ratio - 0.1
		}
		if rate < 0.6 {
			return ratio - 0.05
		}
	case RegimeHigh:
		if rate < 0.4 {
			return ratio + 0.1
		}
		if rate < 0.6 {
			return ratio + 0.05
		}
	}
	return ratio
}

// RecordHedgeOutcome feeds back whether a past hedge decision reduced
// drawdown, for the effectiveness-based ratio nudge.
func (p *Policy) RecordHedgeOutcome(wasEffective bool) {
	p.outcomes = append(p.outcomes, hedgeOutcome{regime: p.Regime(), wasEffective: wasEffective})
	if len(p.outcomes) > p.cfg.EffectivenessWindow*4 {
		p.outcomes = p.outcomes[len(p.outcomes)-p.cfg.EffectivenessWindow*4:]
	}
}

// p90AdverseEstimate approximates p90(|adverseMove|) over all tracked
// tokens' recent price deltas.
func (p *Policy) p90AdverseEstimate() float64 {
	var moves []float64
	for _, obs := range p.history {
		for i := 1; i < len(obs); i++ {
			d := obs[i].priceCents - obs[i-1].priceCents
			if d < 0 {
				moves = append(moves, -d)
			}
		}
	}
	if len(moves) == 0 {
		return p.maxAdverseCents
	}
	sort.Float64s(moves)
	idx := int(float64(len(moves)-1) * 0.9)
	return moves[idx]
}

func clampedStep(current, target, maxChangeFrac, floor float64) float64 {
	delta := target - current
	maxDelta := math.Abs(current) * maxChangeFrac
	if maxDelta < floor {
		maxDelta = floor
	}
	if math.Abs(delta) <= maxDelta {
		return target
	}
	if delta > 0 {
		return current + maxDelta
	}
	return current - maxDelta
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// HedgeEvaluation is the {shouldHedge, ratio, reason} result.
type HedgeEvaluation struct {
	ShouldHedge bool
	Ratio       float64
	Reason      string
}

// EvaluateHedge implements the base hedge decision given current adverse
// P&L (positive cents of loss) and the position's current hedge ratio.
func (p *Policy) EvaluateHedge(adversePnlCents float64, currentHedgeRatio float64) HedgeEvaluation {
	if adversePnlCents < p.triggerCents {
		return HedgeEvaluation{ShouldHedge: false, Ratio: currentHedgeRatio, Reason: "below trigger"}
	}
	if currentHedgeRatio >= p.cfg.RatioMax {
		return HedgeEvaluation{ShouldHedge: false, Ratio: currentHedgeRatio, Reason: "hedge ratio at cap"}
	}
	target := p.hedgeRatio
	if target > p.cfg.RatioMax-currentHedgeRatio {
		target = p.cfg.RatioMax - currentHedgeRatio
	}
	return HedgeEvaluation{ShouldHedge: true, Ratio: target, Reason: "adverse move past trigger"}
}

// EvaluateHedgeWithHistory overlays a historical-snapshot adjustment factor
// on top of EvaluateHedge, clamped to [0.5*original, maxHedgeRatio-current].
func (p *Policy) EvaluateHedgeWithHistory(adversePnlCents float64, currentHedgeRatio float64, historyAdjustFactor float64) HedgeEvaluation {
	base := p.EvaluateHedge(adversePnlCents, currentHedgeRatio)
	if !base.ShouldHedge {
		return base
	}
	adjusted := base.Ratio * historyAdjustFactor
	lower := base.Ratio * 0.5
	upper := p.cfg.RatioMax - currentHedgeRatio
	if adjusted < lower {
		adjusted = lower
	}
	if adjusted > upper {
		adjusted = upper
	}
	base.Ratio = adjusted
	return base
}

// MaxAdverseCents returns the currently adapted hard-exit threshold.
func (p *Policy) MaxAdverseCents() float64 {
	return p.maxAdverseCents
}

// TriggerCents returns the currently adapted hedge-trigger threshold.
func (p *Policy) TriggerCents() float64 {
	return p.triggerCents
}
