package schedule

import (
	"encoding/json"
	"testing"

	"glowbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervals_Shapes(t *testing.T) {
	raw := json.RawMessage(`[
		{"start":"13:00","end":"15:00"},
		"09:00 - 10:00",
		"10:30-11:30",
		"17:00"
	]`)

	got, err := ParseIntervals(raw)
	require.NoError(t, err)
	assert.Equal(t, []models.Interval{
		iv(t, "09:00", "10:00"),
		iv(t, "10:30", "11:30"),
		iv(t, "13:00", "15:00"),
		iv(t, "17:00", "18:00"),
	}, got)
}

func TestParseIntervals_Errors(t *testing.T) {
	tests := map[string]string{
		"not a list":      `{"start":"09:00","end":"10:00"}`,
		"start after end": `[{"start":"12:00","end":"10:00"}]`,
		"equal bounds":    `["10:00 - 10:00"]`,
		"missing end":     `[{"start":"09:00"}]`,
		"bad time":        `["9am - 5pm"]`,
		"number entry":    `[900]`,
		"past midnight":   `["23:30"]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseIntervals(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}
}

func TestParseIntervals_Empty(t *testing.T) {
	got, err := ParseIntervals(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ParseIntervals(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalize_MergesOverlaps(t *testing.T) {
	got, err := Normalize([]models.Interval{
		iv(t, "12:00", "14:00"),
		iv(t, "09:00", "11:00"),
		iv(t, "10:30", "12:00"),
		iv(t, "15:00", "16:00"),
		iv(t, "15:15", "15:45"),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Interval{
		iv(t, "09:00", "12:00"),
		iv(t, "12:00", "14:00"),
		iv(t, "15:00", "16:00"),
	}, got)
}

func TestNormalize_KeepsTouchingIntervals(t *testing.T) {
	declared := []models.Interval{iv(t, "09:30", "10:30"), iv(t, "09:00", "09:30")}

	got, err := Normalize(declared)
	require.NoError(t, err)
	assert.Equal(t, []models.Interval{iv(t, "09:00", "09:30"), iv(t, "09:30", "10:30")}, got)
	assert.Equal(t, GenerateSlots(declared), GenerateSlots(got))
	assert.True(t, ContainsSlot(GenerateSlots(got), models.SlotAt(models.MustTimeOfDay("09:30"))))
}

func TestNormalize_RejectsInverted(t *testing.T) {
	_, err := Normalize([]models.Interval{{Start: 600, End: 540}})
	assert.ErrorIs(t, err, models.ErrInvalidInterval)
}

func TestParseAvailabilityMap(t *testing.T) {
	got, err := ParseAvailabilityMap(json.RawMessage(`{
		"2025-06-02": ["09:00 - 12:00"],
		"2025-06-03": []
	}`))
	require.NoError(t, err)
	assert.Equal(t, []models.Interval{iv(t, "09:00", "12:00")}, got["2025-06-02"])
	assert.Contains(t, got, "2025-06-03")
	assert.Empty(t, got["2025-06-03"])

	_, err = ParseAvailabilityMap(json.RawMessage(`{"06/02/2025": []}`))
	assert.Error(t, err)
}
