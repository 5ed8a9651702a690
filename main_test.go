package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const quietConfig = `version: 1
logging:
  console:
    level: none
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := writeFile(t, t.TempDir(), "config.yaml", quietConfig)
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	ctx := context.WithValue(context.Background(), envKey{}, &env{start: time.Now()})
	err := app.Run(ctx, append([]string{appName, "--config", cfg}, args...))
	return out.String(), err
}

func TestLoadSheetsKeepsArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, c := range []string{"a", "b", "c", "d"} {
		files = append(files, writeFile(t, dir, c+".css", "."+c+" { color: red }"))
	}
	sheets, err := loadSheets(context.Background(), zap.NewNop(), files)
	require.NoError(t, err)
	require.Len(t, sheets, 4)
	for i, c := range []string{".a", ".b", ".c", ".d"} {
		assert.Equal(t, c, sheets[i].Rules[0].SelectorText)
	}

	_, err = loadSheets(context.Background(), zap.NewNop(), []string{filepath.Join(dir, "missing.css")})
	assert.Error(t, err)
}

func TestFeaturesCommand(t *testing.T) {
	sheet := writeFile(t, t.TempDir(), "s.css", ".list .item { color: red }\n#main > p { color: blue }")

	out, err := runApp(t, "features", sheet)
	require.NoError(t, err)
	assert.Contains(t, out, ".list")
	assert.Contains(t, out, "#main")

	tree, err := runApp(t, "features", "--tree", sheet)
	require.NoError(t, err)
	assert.Contains(t, tree, "rule features")

	_, err = runApp(t, "features")
	assert.Error(t, err)
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	html := writeFile(t, dir, "doc.html",
		`<style>.on .t { color: red }</style><div id="d"><span id="s" class="t"></span></div><p id="other"></p>`)
	js := writeFile(t, dir, "run.js", `
		document.getElementById("d").classList.add("on");
		flush();
	`)

	out, err := runApp(t, "replay", "--html", html, "--script", js, "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "update 0:")
	assert.Contains(t, out, "update 1:")
	assert.Contains(t, out, "span#s.t")
	assert.Contains(t, out, "invalidator_recalc_elements_total")

	bad := writeFile(t, dir, "bad.js", `throw new Error("nope")`)
	_, err = runApp(t, "replay", "--html", html, "--script", bad)
	assert.ErrorContains(t, err, "nope")
}

func TestDumpConfigCommand(t *testing.T) {
	out, err := runApp(t, "dumpconfig", "--default")
	require.NoError(t, err)
	assert.Contains(t, out, "bloom_threshold: 50")

	dest := filepath.Join(t.TempDir(), "out.yaml")
	_, err = runApp(t, "dumpconfig", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level: none")
}

func TestRunsWithoutConfigFile(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	ctx := context.WithValue(context.Background(), envKey{}, &env{start: time.Now()})
	require.NoError(t, app.Run(ctx, []string{appName, "dumpconfig"}))
	assert.Contains(t, out.String(), "level: normal")
}
