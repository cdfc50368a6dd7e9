package log

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
	}
}

// Print returns an entry enriched with request fields when a fiber context
// is available. Pass nil outside of request scope.
func Print(c *fiber.Ctx) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	remoteIP := c.IP()
	if v := c.Locals("remote_ip"); v != nil {
		if ip, ok := v.(string); ok && ip != "" {
			remoteIP = ip
		}
	}
	return logger.WithFields(logrus.Fields{
		"remote_ip": remoteIP,
		"method":    c.Method(),
		"uri":       c.OriginalURL(),
	})
}

// Stream returns an entry scoped to one proxied camera stream. Stream
// goroutines outlive their originating request, so they cannot hold the
// fiber context.
func Stream(slug, cameraID string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"slug":   slug,
		"camera": cameraID,
	})
}
