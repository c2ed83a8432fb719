package adaptivev

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaysStaticBelowSampleThreshold(t *testing.T) {
	e := New(DefaultConfig())
	for i := 0; i < 10; i++ {
		e.RecordTrade(14, 25, 2)
	}
	r := e.Evaluate()
	assert.False(t, r.UsedAdaptive)
}

func TestSwitchesToAdaptiveOnceCriteriaMet(t *testing.T) {
	e := New(DefaultConfig())
	for i := 0; i < 20; i++ {
		e.RecordTrade(14, 30, 2)
	}
	for i := 0; i < 20; i++ {
		e.RecordTrade(-9, 30, 2)
	}
	r := e.Evaluate()
	assert.True(t, r.UsedAdaptive)
}

func TestNegativeEVBlocksSize(t *testing.T) {
	e := New(DefaultConfig())
	for i := 0; i < 5; i++ {
		e.RecordTrade(2, 30, 2)
	}
	for i := 0; i < 35; i++ {
		e.RecordTrade(-20, 30, 2)
	}
	r := e.Evaluate()
	assert.Equal(t, 0.0, r.SizeFactor)
}

func TestFullSizeWhenHealthy(t *testing.T) {
	e := New(DefaultConfig())
	for i := 0; i < 5; i++ {
		e.RecordTrade(30, 40, 1)
	}
	r := e.Evaluate()
	assert.Equal(t, 1.0, r.SizeFactor)
}
