package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddr(t *testing.T) {
	cases := []struct {
		addr string
		ok   bool
	}{
		{"127.0.0.1:8000", true},
		{"10.1.2.3:80", true},
		{"8.8.8.8:80", false},
		{"localhost:80", false},
		{"127.0.0.1", false},
	}
	for _, tc := range cases {
		err := validateAddr(tc.addr)
		assert.Equal(t, tc.ok, err == nil, "addr: %s, err: %v", tc.addr, err)
	}
}

func TestSavePid(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test.pid")

	require.NoError(t, savePid(name, 12345678))
	content, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(content))

	// a pid file of a running process is refused
	require.NoError(t, os.WriteFile(name, []byte(strconv.Itoa(os.Getpid())), 0600))
	assert.Error(t, savePid(name, 1))
}

func TestProfiler(t *testing.T) {
	dir := t.TempDir()
	p := StartProfiler(dir)
	p.Stop()
	p.Stop()

	files, err := filepath.Glob(filepath.Join(dir, "*.pprof"))
	require.NoError(t, err)
	assert.Len(t, files, len(profiles))

	dump := dumpGoroutines(dir)
	info, err := os.Stat(dump)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
