package logger

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	once sync.Once
	le   *log.Entry
)

// AddLogger returns the framework wide logrus entry.
// LOG_FORMAT=json switches the formatter to JSON for CI log collectors.
func AddLogger() *log.Entry {
	once.Do(func() {
		logger := newLogger(strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"))
		le = log.NewEntry(logger).WithField("component", "assisted-test-framework")
	})

	return le
}

func newLogger(json bool) *log.Logger {
	logger := log.New()

	if json {
		logger.SetFormatter(&log.JSONFormatter{
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return f.Function, fmt.Sprintf("%s:%d", f.File, f.Line)
			},
		})
	} else {
		logger.SetFormatter(customFormatter())
	}

	logger.SetReportCaller(true)
	logger.SetLevel(log.DebugLevel)
	logger.Out = os.Stdout

	return logger
}

func customFormatter() *log.TextFormatter {
	return &log.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
		CallerPrettyfier: func(_ *runtime.Frame) (string, string) {
			return "", ""
		},
		QuoteEmptyFields: true,
	}
}
