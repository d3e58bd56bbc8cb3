package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, 5, 2, 14, 0, 0, 0, time.UTC)
	snap := domain.InsightSnapshot{
		Locality:      "Imus",
		GeneratedAt:   now,
		WindowDays:    7,
		RiskLevel:     domain.RiskHigh,
		RiskLabel:     "Danger",
		WeeklyAverage: domain.Float(39.4),
	}

	msg, err := serializeToMessage(snap)
	require.NoError(t, err)

	assert.Equal(t, []byte("Imus"), msg.Key)
	assert.Equal(t, now, msg.Time)
	assert.Contains(t, string(msg.Value), `"risk_level":"high"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "risk_level", msg.Headers[0].Key)
	assert.Equal(t, []byte("high"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded domain.InsightSnapshot
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, domain.RiskHigh, decoded.RiskLevel)
	assert.Nil(t, decoded.Peak, "unknown fields stay null")
}
