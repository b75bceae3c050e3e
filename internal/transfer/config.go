package transfer

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds the configuration for the backend client
//
// BaseURL: scheme and host of the processing backend, no trailing slash
// Timeout: per-request timeout in seconds
type Config struct {
	BaseURL   string `json:"base_url"`
	Timeout   int    `json:"timeout"`
	UserAgent string `json:"user_agent"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL must be an absolute http(s) URL")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the headers sent with every request
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{
		"Accept": "application/json",
	}
	if c.UserAgent != "" {
		headers["User-Agent"] = c.UserAgent
	}
	return headers
}
