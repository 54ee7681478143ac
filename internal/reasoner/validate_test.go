package reasoner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTieBreak(t *testing.T) {
	assert.NoError(t, ValidateTieBreak(`{"direction":"buy","confidence":0.8,"reasoning":"momentum holds"}`))

	bad := []string{
		``,
		`not json`,
		`[1,2,3]`,
		`{"direction":"moon","confidence":0.8,"reasoning":"x"}`,
		`{"direction":"buy","confidence":1.5,"reasoning":"x"}`,
		`{"direction":"buy","confidence":0.8,"reasoning":""}`,
		`{"direction":"buy","confidence":0.8}`,
	}
	for _, raw := range bad {
		assert.Error(t, ValidateTieBreak(raw), "raw=%q", raw)
	}
}

func TestValidateOpinion(t *testing.T) {
	assert.NoError(t, ValidateOpinion(`{"direction":"sell","confidence":0.7,"risk_level":"high"}`))
	assert.NoError(t, ValidateOpinion(`{"direction":"hold","confidence":0.5,"risk_level":"low","proposed_size_pct":0.1,"stop_loss_set":true,"rationale":"flat"}`))

	assert.Error(t, ValidateOpinion(`{"direction":"sell","confidence":0.7}`))
	assert.Error(t, ValidateOpinion(`{"direction":"sell","confidence":0.7,"risk_level":"apocalyptic"}`))
	assert.Error(t, ValidateOpinion(`{"direction":"sell","confidence":0.7,"risk_level":"high","proposed_size_pct":2}`))
}
