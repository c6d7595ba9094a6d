package params

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntFormatter(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    any
		wantErr bool
	}{
		{name: "string", in: "42", want: 42},
		{name: "string with spaces", in: " 42 ", want: 42},
		{name: "int passthrough", in: 7, want: 7},
		{name: "whole float", in: float64(3), want: 3},
		{name: "fractional float", in: 3.5, wantErr: true},
		{name: "garbage", in: "seven", wantErr: true},
		{name: "wrong type", in: []string{"3"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Int(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoolFormatter(t *testing.T) {
	got, err := Bool("true")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = Bool(false)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	_, err = Bool("yes")
	assert.Error(t, err)
}

func TestFloatFormatter(t *testing.T) {
	got, err := Float("2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)

	_, err = Float("two")
	assert.Error(t, err)
}

func TestStringFormatter(t *testing.T) {
	got, err := String(42)
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	got, err = String([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", got)

	_, err = String(map[string]any{})
	assert.Error(t, err)
}

func TestTimeFormatter(t *testing.T) {
	got, err := Time("2026-01-02T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), got)

	got, err = Time("2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), got)

	_, err = Time("yesterday")
	assert.Error(t, err)
}

func TestDurationFormatter(t *testing.T) {
	got, err := Duration("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, got)

	got, err = Duration(float64(2))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, got)

	_, err = Duration("soon")
	assert.Error(t, err)
}

func TestJSONFormatter(t *testing.T) {
	got, err := JSON(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, got)

	// Structured values pass through untouched.
	in := map[string]any{"a": 1}
	got, err = JSON(in)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = JSON("{broken")
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, NonEmpty()("x"))
	assert.Error(t, NonEmpty()(""))
	assert.Error(t, NonEmpty()(3))

	assert.NoError(t, OneOf("a", "b")("a"))
	assert.Error(t, OneOf("a", "b")("c"))

	assert.NoError(t, Matches(`^[a-z]+$`)("abc"))
	assert.Error(t, Matches(`^[a-z]+$`)("ABC"))

	assert.NoError(t, Range(1, 5)(3))
	assert.NoError(t, Range(1, 5)(5.0))
	assert.Error(t, Range(1, 5)(9))
	assert.Error(t, Range(1, 5)("3"))
}

func TestClean(t *testing.T) {
	t.Run("plain value passes through", func(t *testing.T) {
		got, err := Clean("hello world", 0)
		require.NoError(t, err)
		assert.Equal(t, "hello world", got)
	})

	t.Run("keeps tab and newline", func(t *testing.T) {
		got, err := Clean("a\tb\nc", 0)
		require.NoError(t, err)
		assert.Equal(t, "a\tb\nc", got)
	})

	t.Run("strips escape and null", func(t *testing.T) {
		got, err := Clean("a\x1b[31mred\x00", 0)
		require.NoError(t, err)
		assert.Equal(t, "a[31mred", got)
	})

	t.Run("rejects oversize", func(t *testing.T) {
		_, err := Clean(strings.Repeat("x", 100), 10)
		assert.ErrorIs(t, err, ErrValueTooLarge)
	})

	t.Run("rejects invalid utf8", func(t *testing.T) {
		_, err := Clean(string([]byte{0xff, 0xfe}), 0)
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})
}

func TestDecode(t *testing.T) {
	type target struct {
		Name  string `mapstructure:"name"`
		Count int    `mapstructure:"count"`
	}

	var dst target
	err := Decode(map[string]any{"name": "ada", "count": "5"}, &dst)
	require.NoError(t, err)
	assert.Equal(t, target{Name: "ada", Count: 5}, dst)
}
