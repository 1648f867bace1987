package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# BondWatch Configuration

[database]
# SQLite database location
path = "%s"

[moex]
# Market-data API base URL
base_url = "https://iss.moex.com"
# Per-request HTTP timeout
timeout = "15s"
# Page size for the coupon pagination fallback
coupon_page_limit = 20

[scheduler]
# Daily reconciliation time (local, HH:MM)
sync_at = "03:00"
# Daily notification scan time (local, HH:MM)
notify_at = "10:00"
# Run a catch-up notification scan at startup
notify_on_start = true

[telegram]
# Bot token for outbound messages (or BONDWATCH_TELEGRAM_TOKEN env var)
bot_token = ""

[billing]
# Plan prices in rubles
basic_price = 149.0
optimal_price = 299.0
pro_price = 499.0

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = true
`

// createTemplateConfig writes a commented config.toml so a first run
// leaves something editable behind.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	content := fmt.Sprintf(configTemplate, filepath.Join(configDir, "bondwatch.db"))
	return os.WriteFile(path, []byte(content), 0644)
}
