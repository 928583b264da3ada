package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldMatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		f    Field
		u    Unit
		v    int
		want bool
	}{
		{"every", Every(), Minute, 37, true},
		{"literal hit", Literal(15), Minute, 15, true},
		{"literal miss", Literal(15), Minute, 16, false},
		{"minute step from zero", Step(5), Minute, 10, true},
		{"minute step miss", Step(5), Minute, 12, false},
		{"dom step from one", Step(2), DayOfMonth, 3, true},
		{"dom step even", Step(2), DayOfMonth, 4, false},
		{"month step", Step(3), Month, 7, true},
		{"dow step monday", Step(2), DayOfWeek, 0, true},
		{"zero step never matches", Step(0), Minute, 0, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.f.Matches(tc.u, tc.v))
		})
	}
}

func TestParseField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		u    Unit
		in   string
		want Field
	}{
		{Minute, "", Every()},
		{Minute, "*", Every()},
		{Minute, "*/5", Step(5)},
		{Hour, " 7 ", Literal(7)},
		{DayOfWeek, "mon", Literal(0)},
		{DayOfWeek, "Sunday", Literal(6)},
		{DayOfWeek, "3", Literal(3)},
		{Month, "feb", Literal(2)},
		{Month, "12", Literal(12)},
	}
	for _, tc := range cases {
		got, err := ParseField(tc.u, tc.in)
		require.NoError(t, err, "%s %q", tc.u.Name, tc.in)
		assert.Equal(t, tc.want, got, "%s %q", tc.u.Name, tc.in)
	}
}

func TestParseFieldRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		u  Unit
		in string
	}{
		{Minute, "60"},
		{Hour, "-1"},
		{DayOfMonth, "0"},
		{DayOfWeek, "7"},
		{Month, "13"},
		{Minute, "*/0"},
		{Minute, "*/x"},
		{Minute, "1-5"},
		{Hour, "mon"},
	}
	for _, tc := range cases {
		_, err := ParseField(tc.u, tc.in)
		require.Error(t, err, "%s %q", tc.u.Name, tc.in)
		assert.True(t, errors.Is(err, ErrInvalid))

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, tc.u.Name, ve.Field)
	}
}

func TestFieldStringRoundsThroughParse(t *testing.T) {
	t.Parallel()

	for _, f := range []Field{Every(), Literal(4), Step(15)} {
		got, err := ParseField(Minute, f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}
