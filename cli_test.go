package main

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaaXYZ/MaaEnd/loopmacro/macro"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func testRoot() (*rootCommand, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	rc := newRootCommand(&stdout, &stderr)
	rc.initLog = func(string, io.Writer) (io.Closer, error) { return nopCloser{}, nil }
	return rc, &stdout, &stderr
}

func TestExecuteHelp(t *testing.T) {
	rc, _, stderr := testRoot()
	require.NoError(t, rc.Execute(nil))
	assert.Contains(t, stderr.String(), "record")
	assert.Contains(t, stderr.String(), "agent")
}

func TestExecuteUnknownCommand(t *testing.T) {
	rc, _, stderr := testRoot()
	assert.Error(t, rc.Execute([]string{"dance"}))
	assert.Contains(t, stderr.String(), `Unknown command "dance"`)
}

func TestPlayDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macro.json")
	l := &macro.Log{}
	require.NoError(t, l.Append(macro.InputEvent{Key: "space", Edge: macro.EdgeDown, Time: 0, Position: geom.Pt(3, 4).Ptr()}))
	require.NoError(t, l.Append(macro.InputEvent{Key: "space", Edge: macro.EdgeUp, Time: 250 * time.Millisecond}))
	require.NoError(t, macro.Save(path, l))

	rc, stdout, _ := testRoot()
	require.NoError(t, rc.Execute([]string{"play", "-dry-run", path}))
	assert.Contains(t, stdout.String(), "events: 2 (down 1, up 1, hold 0), positioned: 1, duration: 0.250s")
}

func TestPlayRequiresFile(t *testing.T) {
	rc, _, _ := testRoot()
	assert.ErrorIs(t, rc.Execute([]string{"play", "-dry-run"}), macro.ErrConfiguration)
}

func TestAgentRequiresIdentifier(t *testing.T) {
	rc, _, _ := testRoot()
	assert.ErrorIs(t, rc.Execute([]string{"agent"}), macro.ErrConfiguration)
}

func TestParseRect(t *testing.T) {
	r, err := parseRect("1600, 40,300,220")
	require.NoError(t, err)
	assert.Equal(t, geom.Rect{1600, 40, 300, 220}, r)

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "0,0,0,5"} {
		_, err := parseRect(bad)
		assert.Error(t, err, bad)
	}
}

func TestRegionOnScreen(t *testing.T) {
	screen := geom.Rect{0, 0, 1920, 1080}
	assert.True(t, regionOnScreen(geom.Rect{1600, 40, 300, 220}, screen))
	assert.True(t, regionOnScreen(geom.Rect{0, 0, 1920, 1080}, screen))
	assert.False(t, regionOnScreen(geom.Rect{1700, 40, 300, 220}, screen))
	assert.False(t, regionOnScreen(geom.Rect{-5, 40, 300, 220}, screen))
	assert.True(t, regionOnScreen(geom.Rect{5000, 5000, 10, 10}, geom.Rect{}), "no display")
}

func TestParsePoint(t *testing.T) {
	pt, err := parsePoint("12.5,7")
	require.NoError(t, err)
	assert.Equal(t, geom.Pt(12.5, 7), pt)

	_, err = parsePoint("12")
	assert.Error(t, err)
	_, err = parsePoint("x,1")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, "info", lvl.String())
	lvl, err = parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, "debug", lvl.String())
	_, err = parseLevel("loud")
	assert.Error(t, err)
}
