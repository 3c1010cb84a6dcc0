package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the JSON logger used across the server
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		log.Warnf("Invalid LOG_LEVEL '%s', using default: %s", level, lvl.String())
	}
	log.SetLevel(lvl)
	return log
}

// Discard returns a logger that drops everything, handy in tests
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}
