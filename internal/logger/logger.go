package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process-wide structured logger. Production gets JSON,
// everything else a human-readable text format.
func New(env string) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// MaskPhone masks a phone number for log fields (e.g. 09******00).
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
