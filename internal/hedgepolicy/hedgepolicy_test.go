package hedgepolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateHedgeBelowTrigger(t *testing.T) {
	p := New(DefaultConfig())
	r := p.EvaluateHedge(1, 0)
	assert.False(t, r.ShouldHedge)
}

func TestEvaluateHedgeAboveTrigger(t *testing.T) {
	p := New(DefaultConfig())
	r := p.EvaluateHedge(20, 0)
	assert.True(t, r.ShouldHedge)
	assert.Greater(t, r.Ratio, 0.0)
}

func TestEvaluateHedgeCappedAtMax(t *testing.T) {
	p := New(DefaultConfig())
	r := p.EvaluateHedge(20, p.cfg.RatioMax)
	assert.False(t, r.ShouldHedge)
}

func TestEvaluateHedgeWithHistoryClampsToBounds(t *testing.T) {
	p := New(DefaultConfig())
	r := p.EvaluateHedgeWithHistory(20, 0, 5.0) // extreme factor should clamp
	assert.True(t, r.ShouldHedge)
	assert.LessOrEqual(t, r.Ratio, p.cfg.RatioMax)
}

func TestRegimeClassification(t *testing.T) {
	p := New(DefaultConfig())
	assert.Equal(t, RegimeLow, p.Regime()) // no observations yet => zero vol/velocity
}
