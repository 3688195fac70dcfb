package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, parseLogLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, parseLogLevel(" warning "))
	require.Equal(t, zerolog.ErrorLevel, parseLogLevel("error"))
	require.Equal(t, zerolog.InfoLevel, parseLogLevel("verbose"))
}

func TestLanguageFromPath(t *testing.T) {
	require.Equal(t, "go", languageFromPath("internal/x/main.go"))
	require.Equal(t, "python", languageFromPath("script.PY"))
	require.Empty(t, languageFromPath("Makefile"))
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o600))

	got, err := readInput(strings.NewReader("ignored"), path)
	require.NoError(t, err)
	require.Equal(t, "package a\n", got)

	got, err = readInput(strings.NewReader("from stdin"), "")
	require.NoError(t, err)
	require.Equal(t, "from stdin", got)

	_, err = readInput(nil, filepath.Join(t.TempDir(), "missing.go"))
	require.Error(t, err)
}

func TestCheckProvider(t *testing.T) {
	for _, name := range []string{"ollama", "OpenAI", "grok", "claude", "bearer-completion"} {
		require.NoError(t, checkProvider(name), name)
	}
	require.Error(t, checkProvider("foo"))
	require.Error(t, checkProvider(""))
}
