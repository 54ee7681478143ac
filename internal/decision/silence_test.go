package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceGate(t *testing.T) {
	policy := SilencePolicy{MinAvgConfidence: 0.55}

	quiet, reason := policy.ConfidenceGate([]Opinion{
		{Direction: DirectionBuy, Confidence: 0.4, Weight: 0.4},
		{Direction: DirectionBuy, Confidence: 0.4, Weight: 0.3},
		{Direction: DirectionSell, Confidence: 0.4, Weight: 0.3},
	})
	assert.True(t, quiet)
	assert.Contains(t, reason, "below threshold")

	quiet, _ = policy.ConfidenceGate([]Opinion{
		{Direction: DirectionBuy, Confidence: 0.8, Weight: 1},
	})
	assert.False(t, quiet)
}

func TestBimodalGate(t *testing.T) {
	policy := SilencePolicy{MaxDisagreement: 0.4}

	quiet, reason := policy.BimodalGate([]Opinion{
		{Direction: DirectionBuy, Confidence: 0.8, Weight: 0.5},
		{Direction: DirectionSell, Confidence: 0.8, Weight: 0.5},
	})
	assert.True(t, quiet)
	assert.Contains(t, reason, "bimodal")

	quiet, _ = policy.BimodalGate([]Opinion{
		{Direction: DirectionBuy, Confidence: 0.8, Weight: 0.7},
		{Direction: DirectionSell, Confidence: 0.8, Weight: 0.3},
	})
	assert.False(t, quiet)

	// 0 表示关闭分歧闸门。
	quiet, _ = SilencePolicy{}.BimodalGate([]Opinion{
		{Direction: DirectionBuy, Weight: 0.5},
		{Direction: DirectionSell, Weight: 0.5},
	})
	assert.False(t, quiet)
}
