// Package logging configures the process-wide logrus logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/luispater/idleClickerBot/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogFormatter struct {
}

func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	if entry.HasCaller() {
		b.WriteString(fmt.Sprintf("[%s] [%s] [%s:%d] ", timestamp, entry.Level, path.Base(entry.Caller.File), entry.Caller.Line))
	} else {
		b.WriteString(fmt.Sprintf("[%s] [%s] ", timestamp, entry.Level))
	}

	if component, ok := entry.Data["component"]; ok {
		b.WriteString(fmt.Sprintf("[%v] ", component))
	}
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if key != "component" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", key, entry.Data[key]))
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Setup points the standard logger at stdout and, when a log file is
// configured, at an append-only rotating file as well. The returned closer
// releases the file.
func Setup(cfg *config.AppConfig) io.Closer {
	log.SetReportCaller(true)
	log.SetFormatter(&LogFormatter{})
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if cfg.Log.File == "" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil)
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	return file
}
