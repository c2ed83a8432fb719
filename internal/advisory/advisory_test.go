package advisory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"predatorbook/internal/position"
)

func TestEvaluateAdviceExitOnDrawdown(t *testing.T) {
	pos := position.New(position.DefaultConfig())
	p := pos.OpenPosition("tok1", 50, 25)
	pos.UpdatePrice(p.ID, 44, 3600) // -6¢ on 50, i.e. -12%

	a := New(pos, nil)
	notes := a.Evaluate()

	assert.Len(t, notes, 1)
	assert.Equal(t, AdviceExit, notes[0].Advice)
}

func TestEvaluateAdviceTrimOnProfit(t *testing.T) {
	pos := position.New(position.DefaultConfig())
	p := pos.OpenPosition("tok1", 50, 25)
	pos.UpdatePrice(p.ID, 60, 3600) // +20%, well past TP (handled upstream)

	a := New(pos, nil)
	notes := a.Evaluate()

	assert.Len(t, notes, 1)
	assert.Equal(t, AdviceTrim, notes[0].Advice)
}

func TestEvaluateAdviceNeutralWithinRange(t *testing.T) {
	pos := position.New(position.DefaultConfig())
	pos.OpenPosition("tok1", 50, 25)

	a := New(pos, nil)
	notes := a.Evaluate()

	assert.Equal(t, AdviceNeutral, notes[0].Advice)
}

func TestEvaluateAdviceLiquidityThin(t *testing.T) {
	pos := position.New(position.DefaultConfig())
	pos.OpenPosition("tok1", 50, 25)

	a := New(pos, func(tokenID string) (LiquidityView, bool) {
		return LiquidityView{BidDepthUsd: 10, AskDepthUsd: 100}, true
	})
	notes := a.Evaluate()

	assert.Equal(t, AdviceLiquidity, notes[0].Advice)
}

func TestNotesReturnsCopy(t *testing.T) {
	pos := position.New(position.DefaultConfig())
	p := pos.OpenPosition("tok1", 50, 25)

	a := New(pos, nil)
	a.Evaluate()
	notes := a.Notes()
	assert.Len(t, notes, 1)

	notes[p.ID] = Note{Advice: AdviceExit, At: time.Now()}
	again := a.Notes()
	assert.NotEqual(t, AdviceExit, again[p.ID].Advice)
}
