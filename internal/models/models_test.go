package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		raw     string
		want    TimeOfDay
		wantErr bool
	}{
		{raw: "09:00", want: 540},
		{raw: "9:30", want: 570},
		{raw: " 17:05 ", want: 1025},
		{raw: "24:00", want: MinutesPerDay},
		{raw: "24:01", wantErr: true},
		{raw: "25:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "12:5", wantErr: true},
		{raw: "noon", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	iv := Interval{Start: MustTimeOfDay("09:30"), End: MustTimeOfDay("11:00")}
	data, err := json.Marshal(iv)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"09:30","end":"11:00"}`, string(data))

	var decoded Interval
	require.NoError(t, json.Unmarshal([]byte(`{"start":"08:00","end":"12:15"}`), &decoded))
	assert.Equal(t, TimeOfDay(480), decoded.Start)
	assert.Equal(t, TimeOfDay(735), decoded.End)

	assert.Error(t, json.Unmarshal([]byte(`{"start":800,"end":"12:15"}`), &decoded))
}

func TestIntervalValidate(t *testing.T) {
	_, err := NewInterval("10:00", "10:00")
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewInterval("11:00", "10:00")
	assert.ErrorIs(t, err, ErrInvalidInterval)

	iv, err := NewInterval("10:00", "12:30")
	require.NoError(t, err)
	assert.Equal(t, 150, iv.Minutes())
	assert.Equal(t, "10:00-12:30", iv.String())
}

func TestParseRole(t *testing.T) {
	for raw, want := range map[string]Role{
		"client":            RoleClient,
		"Provider":          RoleProvider,
		" PENDING_PROVIDER": RolePendingProvider,
		"pending-provider":  RolePendingProvider,
		"admin":             RoleAdmin,
	} {
		got, err := ParseRole(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseRole("authenticated")
	assert.Error(t, err)

	assert.True(t, RolePendingProvider.CanManageProfile())
	assert.False(t, RolePendingProvider.CanOfferServices())
	assert.True(t, RoleAdmin.CanOfferServices())
	assert.False(t, RoleClient.CanManageProfile())
}

func TestStatus(t *testing.T) {
	s, err := ParseStatus("confirmed")
	require.NoError(t, err)
	assert.True(t, s.Active())
	assert.False(t, s.Terminal())

	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusCompleted.Active())

	_, err = ParseStatus("canceled")
	assert.Error(t, err)
}
