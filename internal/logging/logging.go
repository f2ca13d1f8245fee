// Package logging wraps a single process-wide logrus.Logger, the
// structured replacement for the teacher's VerboseMode-gated
// fmt.Fprintf(os.Stderr, ...) calls.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: false})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbose raises the level to Debug, mirroring the teacher's --verbose flag.
func SetVerbose(v bool) {
	if v {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// Log returns the shared logger.
func Log() *logrus.Logger { return log }

// Stage returns a logger scoped to one pipeline stage, the structured
// analogue of the teacher's per-stage error messages.
func Stage(name string) *logrus.Entry {
	return log.WithField("stage", name)
}

// Worker returns a logger scoped to one parallel-driver worker.
func Worker(id string) *logrus.Entry {
	return log.WithField("worker", id)
}
