// Package logger configures the process-wide logrus logger for the CLI.
package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger, which the library packages
// log through. An empty path logs to stderr.
func Setup(path string, debug, logTimestamp, logCaller bool) (*logrus.Logger, error) {
	l := logrus.StandardLogger()

	if len(path) > 0 {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("error opening logfile: %w", err)
		}
		l.SetOutput(f)
	}

	if debug {
		l.SetLevel(logrus.DebugLevel)
	}

	var logFormatter logrus.TextFormatter
	logFormatter.FullTimestamp = true
	if !logTimestamp {
		logFormatter.DisableTimestamp = true
	}
	l.SetFormatter(&logFormatter)

	l.SetReportCaller(logCaller)

	return l, nil
}
