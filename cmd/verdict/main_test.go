package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	panicLogDir = os.TempDir
}

func TestHandlePanic(t *testing.T) {
	t.Cleanup(resetMocks)

	t.Run("writes the panic log", func(t *testing.T) {
		dir := t.TempDir()
		panicLogDir = func() string { return dir }
		var code int
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("boom")
		}()

		assert.Equal(t, 2, code)
		matches, err := filepath.Glob(filepath.Join(dir, "*-"+panicLogName))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		content, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(content), "panic: boom"))
		assert.Contains(t, string(content), "goroutine")
	})

	t.Run("log write failure still exits", func(t *testing.T) {
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only") }
		var code int
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("boom")
		}()

		assert.Equal(t, 2, code)
	})

	t.Run("no panic", func(t *testing.T) {
		called := false
		osExit = func(int) { called = true }
		func() {
			defer handlePanic()
		}()
		assert.False(t, called)
	})
}
