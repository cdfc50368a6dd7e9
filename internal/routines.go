package internal

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/campass/campass-gateway/pkg/log"
)

// Routines registers the gateway's periodic housekeeping jobs.
func Routines(c *cron.Cron, app *App) {
	log.Print(nil).Info("Running Routine Tasks")

	// Drop throttle buckets that have been idle for an hour so the map
	// does not grow with every slug anyone ever probed.
	_, err := c.AddFunc("0 0 * * * *", func() {
		if pruned := app.Throttle.Prune(time.Hour); pruned > 0 {
			log.Print(nil).Info("Pruned idle throttle buckets: ", pruned)
		}
	})
	if err != nil {
		log.Print(nil).WithField("error", err.Error()).Error("Failed to add throttle prune cron job")
	}

	// Probe the upstream camera API every minute so connectivity loss
	// shows up in the logs before a guest hits a dead stream.
	_, err = c.AddFunc("0 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Cameras.Healthy(ctx); err != nil {
			log.Print(nil).Warn("Camera API unhealthy: " + err.Error())
		}
	})
	if err != nil {
		log.Print(nil).WithField("error", err.Error()).Error("Failed to add camera health cron job")
	}
}
