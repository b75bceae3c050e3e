package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

const DefaultRuntimeSettingsFile = "data/settings.json"

// RuntimeSettings are the values an operator can change from the web UI
// without restarting the process.
type RuntimeSettings struct {
	BackendURL          string `json:"backend_url"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	Language            string `json:"language"`
	InboxCron           string `json:"inbox_cron"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.BackendURL) == "" {
		return fmt.Errorf("backend_url is required")
	}
	u, err := url.Parse(s.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend_url must be an absolute http(s) URL")
	}
	if s.PollIntervalSeconds < 1 {
		return fmt.Errorf("poll_interval_seconds must be greater than 0")
	}
	if strings.TrimSpace(s.InboxCron) == "" {
		return fmt.Errorf("inbox_cron is required")
	}
	if _, err := cron.ParseStandard(s.InboxCron); err != nil {
		return fmt.Errorf("invalid inbox_cron: %w", err)
	}
	if strings.TrimSpace(s.Language) == "" {
		return fmt.Errorf("language is required")
	}
	if s.Language != LanguageAuto {
		if _, err := language.Parse(s.Language); err != nil {
			return fmt.Errorf("invalid language: %w", err)
		}
	}
	return nil
}

// RuntimeSettings projects the config onto the editable settings. Poll
// intervals are rounded up to whole seconds, never below one.
func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		BackendURL:          c.Backend.URL,
		PollIntervalSeconds: max(int((c.Poll.Interval+time.Second-1)/time.Second), 1),
		Language:            c.System.Language,
		InboxCron:           c.Inbox.CronExpr,
	}
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.BackendURL) != "" {
			c.Backend.URL = strings.TrimRight(settings.BackendURL, "/")
		}
		if settings.PollIntervalSeconds > 0 {
			c.Poll.Interval = time.Duration(settings.PollIntervalSeconds) * time.Second
		}
		if strings.TrimSpace(settings.InboxCron) != "" {
			c.Inbox.CronExpr = settings.InboxCron
		}
		if settings.Language == LanguageAuto {
			c.System.Language = LanguageAuto
		} else if tag, err := language.Parse(settings.Language); err == nil {
			c.System.Language = tag.String()
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
