// Package instance names the running process in logs and lock values.
package instance

import (
	"os"

	"github.com/angelmondragon/commerce-engine/pkg/env"
)

const fallbackID = "local"

// ID returns COMMERCE_INSTANCE_ID, then the Heroku DYNO name, then the host name.
func ID() string {
	if id := env.First("COMMERCE_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
