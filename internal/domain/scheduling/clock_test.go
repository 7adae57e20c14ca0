package scheduling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", NewClock(9, 0), false},
		{"17:45", NewClock(17, 45), false},
		{"08:30:00", NewClock(8, 30), false},
		{"08:30:15", 0, true},
		{"25:00", 0, true},
		{"9am", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestClock_StringAndArithmetic(t *testing.T) {
	c := NewClock(9, 45)
	assert.Equal(t, "09:45", c.String())
	assert.Equal(t, 9, c.Hour())
	assert.Equal(t, 45, c.Minute())
	assert.Equal(t, "10:15", c.Add(30).String())
	assert.True(t, c.Valid())
	assert.False(t, Clock(24*60).Valid())
	assert.False(t, Clock(-1).Valid())
}

func TestClock_JSON(t *testing.T) {
	var v struct {
		At Clock `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"14:30"}`), &v))
	assert.Equal(t, NewClock(14, 30), v.At)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"14:30"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"at":870}`), &v))
}

func TestClock_PgTime(t *testing.T) {
	c := NewClock(13, 5)
	v, err := c.TimeValue()
	require.NoError(t, err)
	assert.Equal(t, int64(13*time.Hour+5*time.Minute)/int64(time.Microsecond), v.Microseconds)

	var back Clock
	require.NoError(t, back.ScanTime(v))
	assert.Equal(t, c, back)

	assert.Error(t, back.ScanTime(pgtype.Time{}))
}

func TestWeekday(t *testing.T) {
	assert.Equal(t, Monday, WeekdayOf(time.Monday))
	assert.Equal(t, Sunday, WeekdayOf(time.Sunday))
	assert.Equal(t, Saturday, WeekdayOf(time.Saturday))

	d, err := ParseWeekday("friday")
	require.NoError(t, err)
	assert.Equal(t, Friday, d)

	_, err = ParseWeekday("Funday")
	assert.Error(t, err)
}
