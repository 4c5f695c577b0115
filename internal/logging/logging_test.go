package logging

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/luispater/idleClickerBot/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFormatter(t *testing.T) {
	entry := &log.Entry{
		Time:    time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "language selector not found",
		Data: log.Fields{
			"component": "game",
			"selector":  "#langSelect-EN",
			"attempt":   1,
		},
	}

	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2024-05-01 13:04:05] [warning] [game] language selector not found attempt=1 selector=#langSelect-EN\n", string(out))
}

func TestLogFormatterWithCaller(t *testing.T) {
	logger := log.New()
	logger.SetReportCaller(true)
	entry := log.NewEntry(logger)
	entry.Time = time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)
	entry.Level = log.InfoLevel
	entry.Message = "started"
	entry.Caller = &runtime.Frame{File: "/src/internal/game/controller.go", Line: 42}

	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2024-05-01 13:04:05] [info] [controller.go:42] started\n", string(out))
}

func TestSetupWritesToFile(t *testing.T) {
	prevOut, prevLevel, prevFormatter := log.StandardLogger().Out, log.GetLevel(), log.StandardLogger().Formatter
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetLevel(prevLevel)
		log.SetFormatter(prevFormatter)
		log.SetReportCaller(false)
	})

	cfg := config.DefaultConfig()
	cfg.Debug = true
	cfg.Log.File = filepath.Join(t.TempDir(), "bot.log")

	closer := Setup(cfg)
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	log.WithField("component", "test").Info("hello file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test] hello file")
}
