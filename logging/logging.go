package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	logger  = newLogger(os.Stderr)
	logFile *os.File
	mu      sync.Mutex
	isSetup bool
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return l
}

// SetupLogger sends log output to the specified file and enables debug level
func SetupLogger(logFilePath string) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	logger.SetOutput(logFile)
	logger.SetLevel(logrus.DebugLevel)
	logger.Debugf("--- imagematch debug log started at %s ---", time.Now().Format(time.RFC3339))

	isSetup = true
	return nil
}

// SetDebug toggles debug level without redirecting output
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects log output; used by tests and the CLI.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// CloseLogger closes the log file and restores stderr output
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logger.Debugf("--- imagematch debug log closed at %s ---", time.Now().Format(time.RFC3339))
		logFile.Close()
		logFile = nil
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.InfoLevel)
		isSetup = false
	}
}

// Logger exposes the underlying logger for callers that want fields.
func Logger() *logrus.Logger {
	return logger
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// DebugLog logs a message if debug mode is enabled
func DebugLog(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// LogImageProcessed logs the outcome of a single image
func LogImageProcessed(path string, success bool, errMsg string) {
	entry := logger.WithField("path", path)
	if success {
		entry.Debug("processed")
	} else {
		entry.WithField("error", errMsg).Debug("failed")
	}
}

// LogMatch records an accepted match at debug level
func LogMatch(seq int, queryPath, targetPath string, similarity float32) {
	logger.WithFields(logrus.Fields{
		"seq":        seq,
		"query":      queryPath,
		"target":     targetPath,
		"similarity": fmt.Sprintf("%.3f", similarity),
	}).Debug("match")
}
