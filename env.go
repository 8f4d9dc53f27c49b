/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package trackmigrate

import (
	"fmt"
)

// ClientEnv builds the environment variables understood by the psql client
// from the connection configuration. The order is deterministic.
//
// Validation artifacts are spawned with the same environment, so they can
// reach the target database with their own client invocations.
func ClientEnv(cfg *Config) []string {
	env := []string{
		"PGHOST=" + cfg.Host,
		fmt.Sprintf("PGPORT=%d", cfg.Port),
		"PGDATABASE=" + cfg.Database,
		"PGUSER=" + cfg.User,
	}
	if cfg.Password != "" {
		env = append(env, "PGPASSWORD="+cfg.Password)
	}
	if cfg.ClientEncoding != "" {
		env = append(env, "PGCLIENTENCODING="+cfg.ClientEncoding)
	}
	return env
}
