package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "blinker.rowp")
	dst := filepath.Join(dir, "blinker.txt")
	require.NoError(t, os.WriteFile(src, []byte("size 3 3\nplace blinker 1 0\n"), 0o644))

	out, err := execute(t, src, dst)
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully compiled")

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "000\n111\n000\n", string(got))
}

func TestCompileVerbose(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "block.rowp")
	require.NoError(t, os.WriteFile(src, []byte("size 4 4\nplace block 1 1\n"), 0o644))

	out, err := execute(t, "-v", src, filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Contains(t, out, "4 live cells")
}

func TestCompileErrors(t *testing.T) {
	_, err := execute(t, "only-one-arg")
	assert.Error(t, err)

	dir := t.TempDir()
	src := filepath.Join(dir, "bad.rowp")
	require.NoError(t, os.WriteFile(src, []byte("size 2 2\nplace glider 0 0\n"), 0o644))
	_, err = execute(t, src, filepath.Join(dir, "out.txt"))
	assert.ErrorContains(t, err, "compilation failed")

	_, err = execute(t, "--clip", src, filepath.Join(dir, "out.txt"))
	assert.NoError(t, err)
}

func TestListPatterns(t *testing.T) {
	out, err := execute(t, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "glider")
	assert.Contains(t, out, "blinker")
}
