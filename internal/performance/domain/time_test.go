package performance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineDateTime(t *testing.T) {
	date := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	got, err := CombineDateTime(date, "0830")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 30, 8, 30, 0, 0, time.UTC), got)

	got, err = CombineDateTime(date, "2359")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 30, 23, 59, 0, 0, time.UTC), got)
}

func TestCombineDateTimeKeepsLocation(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	date := time.Date(2024, 4, 30, 0, 0, 0, 0, london)
	got, err := CombineDateTime(date, "0800")
	require.NoError(t, err)
	assert.Equal(t, london, got.Location())
	assert.Equal(t, 8, got.Hour())
}

func TestCombineDateTimeRejectsBadClock(t *testing.T) {
	date := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	for _, clock := range []string{"", "830", "08:30", "2400", "0860", "+830", "ab12", "08300"} {
		_, err := CombineDateTime(date, clock)
		assert.True(t, errors.Is(err, ErrInvalidTime), clock)
	}
}

func TestDayStart(t *testing.T) {
	assert.Equal(t,
		time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		DayStart(time.Date(2024, 4, 30, 17, 45, 12, 9, time.UTC)))
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Operator{Name: "Great Western"}.Validate(), ErrEmptyNaturalKey)
	assert.NoError(t, Operator{Code: "GW"}.Validate())
	assert.ErrorIs(t, Station{Name: "Paddington"}.Validate(), ErrEmptyNaturalKey)
	assert.ErrorIs(t, Service{UID: "C12345"}.Validate(), ErrEmptyNaturalKey)
	assert.NoError(t, Service{UID: "C12345", Operator: Operator{Code: "GW"}}.Validate())
	assert.ErrorIs(t, CancellationType{}.Validate(), ErrEmptyNaturalKey)
}

func TestRawServiceClassification(t *testing.T) {
	assert.True(t, RawService{ServiceType: "TRAIN"}.IsTrain())
	assert.False(t, RawService{ServiceType: "bus"}.IsTrain())
	assert.True(t, RawService{LocationDetail: LocationDetail{CancelReasonCode: "TG"}}.IsCancelled())
	assert.False(t, RawService{}.IsCancelled())
}

func TestArrivalDelay(t *testing.T) {
	scheduled := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	arrival := Arrival{Scheduled: scheduled, Actual: scheduled.Add(5 * time.Minute)}
	assert.Equal(t, 5*time.Minute, arrival.Delay())
}
