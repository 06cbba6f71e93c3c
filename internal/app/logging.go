package app

import (
	"os"

	"smart-shopping-list/internal/config"

	"github.com/sirupsen/logrus"
)

// ConfigureLogging applies the configured level and format to the standard
// logrus logger.
func ConfigureLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
