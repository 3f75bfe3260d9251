package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/CalebQ42/unpack/engine"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func writeZstd(t *testing.T, path string, data []byte) {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	require.NoError(t, os.WriteFile(path, enc.EncodeAll(data, nil), 0644))
}

func writeLZ4(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func writeXZ(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func execute(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func TestUnpackFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt.zst")
	b := filepath.Join(dir, "b.txt.lz4")
	c := filepath.Join(dir, "c.txt.xz")
	writeZstd(t, a, []byte("first file\n"))
	writeLZ4(t, b, []byte("second file\n"))
	writeXZ(t, c, []byte("third file\n"))

	require.NoError(t, execute("-j", "2", a, b, c))

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first file\n", string(got))
	got, err = os.ReadFile(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second file\n", string(got))
	got, err = os.ReadFile(filepath.Join(dir, "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "third file\n", string(got))
	assert.NoFileExists(t, a)
	assert.NoFileExists(t, b)
}

func TestKeepAndExisting(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "data.zst")
	writeZstd(t, in, []byte("payload"))

	require.NoError(t, execute("-k", "--max-mem", "1KiB", in))
	assert.FileExists(t, in)

	// Output exists now.
	assert.Error(t, execute("-k", in))
	require.NoError(t, execute("-k", "-f", in))
	got, err := os.ReadFile(filepath.Join(dir, "data"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestCorruptInputRemovesOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bad.zst")
	writeZstd(t, in, bytes.Repeat([]byte("x"), 1000))
	raw, err := os.ReadFile(in)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, raw[:len(raw)-2], 0644))

	assert.Error(t, execute(in))
	assert.FileExists(t, in)
	assert.NoFileExists(t, filepath.Join(dir, "bad"))
}

func TestTestMode(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "data.zst")
	writeZstd(t, in, []byte("payload"))
	require.NoError(t, execute("-t", in))
	assert.FileExists(t, in)
	assert.NoFileExists(t, filepath.Join(dir, "data"))
}

func TestOffset(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "wrapped.zst")
	writeZstd(t, in, []byte("inner"))
	raw, err := os.ReadFile(in)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, append([]byte("HDR!"), raw...), 0644))

	require.NoError(t, execute("-k", "--offset", "4", in))
	got, err := os.ReadFile(filepath.Join(dir, "wrapped"))
	require.NoError(t, err)
	assert.Equal(t, "inner", string(got))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "unpack.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("codec = \"lz4\"\njobs = 3\nkeep = true\nmax_mem = \"2KiB\"\n"), 0644))

	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--config", cfg, "-j", "5"}))
	f := &flags{}
	f.config = cfg
	f.jobs = 5
	s, err := resolve(cmd.Flags(), f)
	require.NoError(t, err)
	assert.Equal(t, engine.LZ4, s.codec)
	assert.Equal(t, 5, s.jobs)
	assert.True(t, s.keep)
	assert.Equal(t, int64(2048), s.maxMem)

	f = &flags{config: cfg, stdout: true}
	s, err = resolve(newRootCmd().Flags(), f)
	require.NoError(t, err)
	assert.Equal(t, 1, s.jobs)

	_, err = resolve(newRootCmd().Flags(), &flags{offset: -1})
	assert.Error(t, err)
}
