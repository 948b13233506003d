package instance

import (
	"os"

	"github.com/angelmondragon/labaccess-backend/pkg/env"
)

// GetID returns the process instance identifier used in logs and run records.
func GetID() string {
	if id := env.First("", "LABACCESS_WORKER_ID", "WORKER_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
