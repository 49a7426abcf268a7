package pinctrl

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGet = `
 0: ip    pu | hi // ID_SDA/GPIO0 = input
 2: no    pu | -- // GPIO2 = none
16: op dl pn | lo // GPIO16 = output
25: op dh pd | hi // GPIO25 = output
`

func stubRun(t *testing.T, fn func(combined bool, args ...string) ([]byte, error)) {
	t.Helper()
	orig := run
	run = fn
	t.Cleanup(func() { run = orig })
}

func TestParseGetOutput(t *testing.T) {
	states, err := parseGetOutput(strings.NewReader(sampleGet))
	require.NoError(t, err)
	require.Len(t, states, 4)

	assert.Equal(t, PinState{Pin: 16, Mode: "op", Pull: "pn", Drive: "dl", Level: "lo", Comment: "GPIO16 = output"}, states[16])
	assert.Equal(t, "--", states[2].Level)
	assert.Equal(t, "dh", states[25].Drive)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
		wantErr  bool
	}{
		{"0", false, false},
		{"1", true, false},
		{"\n1\n", true, false},
		{"hi", false, true},
	}
	for _, tc := range tests {
		got, err := parseLevel(tc.input)
		if tc.wantErr {
			assert.Error(t, err, tc.input)
			continue
		}
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.expected, got, tc.input)
	}
}

func TestReadPinUsesGetOutput(t *testing.T) {
	stubRun(t, func(_ bool, args ...string) ([]byte, error) {
		assert.Equal(t, []string{"get"}, args)
		return []byte(sampleGet), nil
	})

	ps, err := ReadPin(25)
	require.NoError(t, err)
	assert.Equal(t, "op", ps.Mode)

	_, err = ReadPin(7)
	assert.Error(t, err)
}

func TestSetPinBuildsArgs(t *testing.T) {
	var got []string
	stubRun(t, func(combined bool, args ...string) ([]byte, error) {
		assert.True(t, combined)
		got = args
		return nil, nil
	})

	require.NoError(t, SetPin(16, "op", "pn", "dh"))
	assert.Equal(t, []string{"set", "16", "op", "pn", "dh"}, got)
}

func TestReadLevelPropagatesFailure(t *testing.T) {
	stubRun(t, func(bool, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})

	_, err := ReadLevel(16)
	assert.ErrorContains(t, err, "pin 16")
}
