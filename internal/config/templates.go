package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a starter config to path. Refuses to clobber an
// existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const template = `token = "your-bot-token"
prefix = "~"
living_channel = ""
dead_channel = ""
spectator_role = ""
owners = []
deafen_muted = false
start_delay_seconds = 5
settle_delay_seconds = 5

[capture]
enabled = false
addr = ":8123"
auth_token = ""
connect_code = ""
`
