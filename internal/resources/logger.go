package resources

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/openshift/assisted-test-framework/internal/pkg/logger"
)

var log = logger.AddLogger()

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
	"fatal": 4,
}

// LogLevel logs the message with the specified level.
// Messages below LOG_LEVEL (default info) are dropped.
func LogLevel(level, format string, args ...interface{}) {
	msg := formatLogArgs(format, args...).Error()

	if !enabled(level) {
		return
	}

	switch level {
	case "debug":
		log.Debug(msg)
	case "info":
		log.Info(msg)
	case "warn":
		log.Warn(msg)
	case "error":
		log.Error(withCaller(msg))
	case "fatal":
		log.Fatal(withCaller(msg))
	default:
		log.Info(msg)
	}
}

// ReturnLogError logs the error and returns it.
func ReturnLogError(format string, args ...interface{}) error {
	err := formatLogArgs(format, args...)
	log.Error(withCaller(err.Error()))

	return err
}

func enabled(level string) bool {
	want, ok := levelRank[level]
	if !ok {
		return true
	}

	current, ok := levelRank[strings.ToLower(os.Getenv("LOG_LEVEL"))]
	if !ok {
		current = levelRank["info"]
	}

	return want >= current
}

func withCaller(msg string) string {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return msg
	}

	return fmt.Sprintf("%s\nLast call: %s in file:%s:%d", msg, runtime.FuncForPC(pc).Name(), file, line)
}

// formatLogArgs formats the logger message, keeping %w wrapping intact.
func formatLogArgs(format string, args ...interface{}) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", format)
	}

	return fmt.Errorf(format, args...)
}
