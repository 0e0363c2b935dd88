package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# NIFTY Options Advisor Configuration

[analysis]
# Block trading when the nearest expiry is within 7 days
block_weekly_expiry = true
# Check the raw document against the option-chain schema before analysis
strict_validation = true
# Optional YAML file with custom scorer weights
weights_profile = ""

[fetcher]
# Index symbol passed to the NSE option-chain API
symbol = "NIFTY"
base_url = "https://www.nseindia.com"
# Per-request timeout
timeout = "10s"
# Attempts before giving up on transient errors (403 is never retried)
max_retries = 3
# Client-side rate limit; 0 disables it
requests_per_minute = 20
# Visit the NSE home page first to obtain session cookies
prime_session = true
prime_delay = "1.5s"

[server]
addr = ":8000"
read_timeout = "15s"
write_timeout = "90s"
# Upper bound for one analysis request, fetch included
request_timeout = "60s"
cors_origins = ["*"]

[journal]
# Record every analysis in a local SQLite journal
enabled = true
# path = "~/.config/nifty-advisor/journal.db"

[backtest]
initial_capital = 100000.0
# Stop loss and target as fractions of the entry premium
stop_loss = 0.20
target = 0.50
quantity = 1
# Skip entries on days the safety gate blocked
respect_safety_gate = true

[logging]
# debug, info, warn, error
level = "info"
file = true
# file_path = "~/.config/nifty-advisor/logs/advisor.log"
max_size_mb = 50
max_backups = 5
max_age_days = 30

[ui]
# Enable colored output
color_enabled = true
date_format = "02-Jan-2006"
time_format = "15:04:05"
`

// Template returns the commented default config file.
func Template() string {
	return configTemplate
}

// WriteTemplate writes the commented template to path unless a file exists.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
