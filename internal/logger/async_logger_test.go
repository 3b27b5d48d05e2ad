package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestAsyncLoggerWriteAndClose(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")
	lj := &lumberjack.Logger{Filename: logPath}
	a := NewAsyncLogger(lj, 10)

	fmt.Fprintln(a, "message 1")
	fmt.Fprintln(a, "message 2")
	fmt.Fprintln(a, "message 3")
	require.NoError(t, a.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "message 1\nmessage 2\nmessage 3\n", string(content))
}

func TestAsyncLoggerCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	lj := &lumberjack.Logger{Filename: filepath.Join(dir, "test.log")}
	a := NewAsyncLogger(lj, 1)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
