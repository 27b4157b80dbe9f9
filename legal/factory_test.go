package legal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
)

func TestParse_YAMLOverridesDefaults(t *testing.T) {
	yamlStr := `
name: colombia-2026
surcharges:
  night_ordinary: 40
  overtime_day: 25
fixed_holidays:
  - {month: 1, day: 1, name: Año Nuevo}
`
	c, err := legal.Parse([]byte(yamlStr))
	require.NoError(t, err)

	assert.Equal(t, "colombia-2026", c.Name)
	assert.True(t, decimal.NewFromInt(40).Equal(c.Surcharges.NightOrdinary))
	// omitted fields keep their defaults
	assert.True(t, decimal.NewFromInt(100).Equal(c.Surcharges.DominicalNight))
	assert.Equal(t, 480, c.DailyOrdinaryMinutes)
	assert.Len(t, c.FixedHolidays, 1)
	assert.Len(t, c.MondayHolidays, 7)
	assert.Equal(t, "America/Bogota", c.TimeZone)
}

func TestParse_JSON(t *testing.T) {
	jsonStr := `{"name": "utc-rules", "time_zone": "UTC", "daily_ordinary_minutes": 420}`

	c, err := legal.Parse([]byte(jsonStr))
	require.NoError(t, err)

	assert.Equal(t, time.UTC, c.Location())
	assert.Equal(t, 420, c.DailyOrdinaryMinutes)
}

func TestParse_RejectsInconsistentWindows(t *testing.T) {
	_, err := legal.Parse([]byte("day_window: {start: 6, end: 21}\n"))
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestParse_RejectsUnknownZone(t *testing.T) {
	_, err := legal.Parse([]byte("time_zone: Mars/Olympus\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weekly_ordinary_minutes: 2520\nweekly_warning_minutes: 2280\n"), 0o600))

	c, err := legal.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2520, c.WeeklyOrdinaryMinutes)

	_, err = legal.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestColombia2025_IsValid(t *testing.T) {
	require.NoError(t, legal.Colombia2025().Validate())
}
