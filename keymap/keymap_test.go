package keymap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := map[Key]Class{
		Space:   ClassJump,
		"shift": ClassJump,
		Left:    ClassDirectional,
		Down:    ClassDirectional,
		"a":     ClassSkill,
		"f1":    ClassSkill,
		Alt:     ClassSkill,
	}
	for k, want := range cases {
		assert.Equal(t, want, Classify(k), "key %q", k)
	}
	assert.True(t, IsJump(Space))
	assert.False(t, IsJump(Up))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Left, Normalize("Arrow Left"))
	assert.Equal(t, Key("esc"), Normalize("Escape"))
	assert.Equal(t, Space, Normalize(" "))
	assert.Equal(t, Key("q"), Normalize(" Q "))
}

func TestGetKeyCode(t *testing.T) {
	code, err := GetKeyCode(Space)
	require.NoError(t, err)
	assert.EqualValues(t, 0x20, code)

	_, err = GetKeyCode("keypad enter")
	assert.True(t, errors.Is(err, ErrUnknownKey))

	_, err = GetKeyCode("no such key")
	assert.True(t, errors.Is(err, ErrUnknownKey))
}

func TestMonitoredIsSortedAndSupported(t *testing.T) {
	keys := Monitored()
	require.NotEmpty(t, keys)
	for i := 1; i < len(keys); i++ {
		assert.Less(t, string(keys[i-1]), string(keys[i]))
	}
	assert.NotContains(t, keys, Key("keypad enter"))
	assert.Contains(t, keys, Space)
}

func TestSet(t *testing.T) {
	prev := NewSet("a", Space)
	cur := NewSet(Space, Left)

	assert.Equal(t, []Key{Left}, cur.Minus(prev))
	assert.Equal(t, []Key{"a"}, prev.Minus(cur))
	assert.Equal(t, []Key{Left, Space}, cur.Sorted())

	cur.Remove(Left)
	cur.Add("a")
	assert.Empty(t, cur.Minus(prev))
	assert.Equal(t, []Key{"a", Space}, cur.Sorted())
}
