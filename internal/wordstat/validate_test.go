package wordstat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testValidator() *Validator {
	return NewValidator([]Region{
		{ID: 213, Label: "Москва"},
		{ID: 2, Label: "Санкт-Петербург"},
	})
}

func TestValidatorPeriod(t *testing.T) {
	t.Parallel()

	v := testValidator()
	require.NoError(t, v.Period(PeriodDaily))
	require.NoError(t, v.Period(PeriodWeekly))
	require.NoError(t, v.Period(PeriodMonthly))

	err := v.Period("yearly")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "period", validationErr.Field)
	require.Equal(t, "yearly", validationErr.Value)
}

func TestValidatorDevices(t *testing.T) {
	t.Parallel()

	v := testValidator()
	require.NoError(t, v.Devices(nil))
	require.NoError(t, v.Devices([]string{"all", "desktop", "phone", "tablet"}))

	err := v.Devices([]string{"desktop", "bogus"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "devices", validationErr.Field)
	require.Equal(t, "bogus", validationErr.Value)
}

func TestValidatorRegions(t *testing.T) {
	t.Parallel()

	v := testValidator()
	require.NoError(t, v.Regions(nil))
	require.NoError(t, v.Regions([]int64{213, 2}))

	err := v.Regions([]int64{999999999})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "regions", validationErr.Field)
	require.Equal(t, int64(999999999), validationErr.Value)
}

func TestValidateSkipsAbsentFields(t *testing.T) {
	t.Parallel()

	v := testValidator()
	require.NoError(t, v.Validate("", nil, nil))
	require.NoError(t, v.Validate(PeriodWeekly, []int64{213}, []string{"phone"}))

	err := v.Validate("hourly", []int64{213}, nil)
	require.Error(t, err)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Equal(t, "period", validationErr.Field)
}
