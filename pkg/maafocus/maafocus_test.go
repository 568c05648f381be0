package maafocus

import (
	"testing"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeActionStartingNilContext(t *testing.T) {
	assert.ErrorIs(t, NodeActionStarting(nil, "x"), ErrNilContext)
}

func TestReporterSkipsRepeats(t *testing.T) {
	var sent []string
	r := &Reporter{send: func(_ *maa.Context, s string) error {
		sent = append(sent, s)
		return nil
	}}

	assert.True(t, r.Report("running, loop 1/3"))
	assert.False(t, r.Report("running, loop 1/3"))
	assert.True(t, r.Report("running, loop 2/3"))
	require.Len(t, sent, 2)
	assert.Equal(t, "running, loop 2/3", sent[1])
}

func TestReporterNilContextIsQuiet(t *testing.T) {
	r := NewReporter(nil)
	assert.True(t, r.Report("idle"))
	assert.False(t, r.Report("idle"))
}
