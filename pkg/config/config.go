// Package config loads and saves the mdical settings file.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/mdical/pkg/model"
	"github.com/harrisonrobin/mdical/pkg/publish"
	"github.com/harrisonrobin/mdical/pkg/validation"
	"github.com/harrisonrobin/mdical/pkg/vault"
)

const (
	xdgAppName = "mdical"
	configFile = "config.json"

	MinSaveInterval = 1
	MaxSaveInterval = 1440
)

// FileTarget configures saving the calendar into a local file.
type FileTarget struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
}

// GistTarget configures replacing a file of a GitHub gist.
type GistTarget struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token"`
	GistID   string `json:"gist_id"`
	Username string `json:"username"`
	Filename string `json:"filename"`
}

// APITarget configures the hosted calendar service.
type APITarget struct {
	Enabled   bool   `json:"enabled"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
}

type Config struct {
	Vault     string `json:"vault"`
	VaultName string `json:"vault_name"`

	Links            model.LinkPolicy      `json:"links"`
	IgnoreCompleted  bool                  `json:"ignore_completed"`
	IgnoreOld        bool                  `json:"ignore_old"`
	OldTaskDays      int                   `json:"old_task_days"`
	IncludeTodos     bool                  `json:"include_todos"`
	OnlyUndatedTodos bool                  `json:"only_undated_todos"`
	MultiDate        model.MultiDatePolicy `json:"multi_date"`
	DayPlanner       bool                  `json:"day_planner"`
	IncludeTags      string                `json:"include_tags"`
	IncludeTagsOn    bool                  `json:"include_tags_enabled"`
	ExcludeTags      string                `json:"exclude_tags"`
	ExcludeTagsOn    bool                  `json:"exclude_tags_enabled"`
	LinkDescription  bool                  `json:"link_in_description"`
	TimeZone         string                `json:"time_zone"`

	File FileTarget `json:"file"`
	Gist GistTarget `json:"gist"`
	API  APITarget  `json:"api"`

	PeriodicSave         bool `json:"periodic_save"`
	PeriodicSaveInterval int  `json:"periodic_save_interval"`

	Debug    bool   `json:"debug"`
	Calendar string `json:"calendar"`
}

// Default returns the settings of a fresh install.
func Default() *Config {
	return &Config{
		Links:                model.LinksUnchanged,
		OldTaskDays:          365,
		OnlyUndatedTodos:     true,
		MultiDate:            model.PreferDueDate,
		IncludeTags:          "#calendar",
		ExcludeTags:          "#ignore",
		File:                 FileTarget{Extension: ".ical"},
		Gist:                 GistTarget{Filename: publish.DefaultGistFilename},
		API:                  APITarget{BaseURL: publish.DefaultAPIURL},
		PeriodicSave:         true,
		PeriodicSaveInterval: 5,
		Calendar:             "Tasks",
	}
}

func GetConfigPath() (string, error) {
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName, configFile), nil
}

// Load reads the settings file. A missing file yields the defaults; missing
// fields keep their default values.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	switch c.Links {
	case model.LinksUnchanged, model.LinksKeepTitle, model.LinksPreferTitle, model.LinksRemove:
	default:
		c.Links = model.LinksUnchanged
	}
	switch c.MultiDate {
	case model.PreferDueDate, model.PreferStartDate, model.EventPerDate:
	default:
		c.MultiDate = model.PreferDueDate
	}
	if c.OldTaskDays < 0 {
		c.OldTaskDays = 0
	}
	if c.PeriodicSaveInterval < MinSaveInterval {
		c.PeriodicSaveInterval = MinSaveInterval
	}
	if c.PeriodicSaveInterval > MaxSaveInterval {
		c.PeriodicSaveInterval = MaxSaveInterval
	}
	if c.Gist.Filename == "" {
		c.Gist.Filename = publish.DefaultGistFilename
	}
	if c.Calendar == "" {
		c.Calendar = "Tasks"
	}
}

func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}

// Location is the configured time zone, or the local one.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// ParsingOptions is the read-only view of the settings handed to the
// recognizer, scanner and renderer.
func (c *Config) ParsingOptions() (model.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return model.Options{}, err
	}
	opts := model.Options{
		Links:            c.Links,
		IgnoreCompleted:  c.IgnoreCompleted,
		IgnoreOld:        c.IgnoreOld,
		OldTaskDays:      c.OldTaskDays,
		IncludeTodos:     c.IncludeTodos,
		OnlyUndatedTodos: c.OnlyUndatedTodos,
		MultiDate:        c.MultiDate,
		DayPlanner:       c.DayPlanner,
		LinkDescription:  c.LinkDescription,
		Location:         loc,
	}
	if c.IncludeTagsOn {
		opts.IncludeTags = vault.ParseTags(c.IncludeTags)
	}
	if c.ExcludeTagsOn {
		opts.ExcludeTags = vault.ParseTags(c.ExcludeTags)
	}
	return opts, nil
}

// Watching reports whether saves repeat on the interval: always with the
// watch flag, otherwise when periodic saving is on and once is not set.
func (c *Config) Watching(watch, once bool) bool {
	if watch {
		return true
	}
	return c.PeriodicSave && !once
}

// GistURL is the raw URL the gist target publishes to, or "" when the
// username or gist id is missing.
func (c *Config) GistURL() string {
	if c.Gist.Username == "" || c.Gist.GistID == "" {
		return ""
	}
	return "https://gist.githubusercontent.com/" + c.Gist.Username + "/" + c.Gist.GistID + "/raw/" + c.Gist.Filename
}

// SaveInterval is the periodic save period.
func (c *Config) SaveInterval() time.Duration {
	return time.Duration(c.PeriodicSaveInterval) * time.Minute
}

// Publishers builds the enabled save targets. A target that is enabled but
// incomplete is an error rather than silently skipped.
func (c *Config) Publishers(ctx context.Context, vaultName string, cache *validation.Cache, logger log.FieldLogger) ([]publish.Publisher, error) {
	var targets []publish.Publisher
	if c.File.Enabled {
		if c.File.Name == "" {
			return nil, fmt.Errorf("file target: %w", publish.ErrNotConfigured)
		}
		if !publish.ValidExtension(c.File.Extension) {
			return nil, fmt.Errorf("file target: extension %q must be one of %v", c.File.Extension, publish.Extensions)
		}
		targets = append(targets, &publish.FileWriter{Dir: c.File.Path, Base: c.File.Name, Ext: c.File.Extension})
	}
	if c.Gist.Enabled {
		if c.Gist.Token == "" || c.Gist.GistID == "" {
			return nil, fmt.Errorf("gist target: %w", publish.ErrNotConfigured)
		}
		targets = append(targets, publish.NewGistClient(ctx, c.Gist.Token, c.Gist.GistID, c.Gist.Filename))
	}
	if c.API.Enabled {
		if c.API.SecretKey == "" {
			return nil, fmt.Errorf("api target: %w", publish.ErrAPIKeyMissing)
		}
		targets = append(targets, publish.NewAPIClient(c.API.BaseURL, vaultName, c.API.SecretKey, cache, logger))
	}
	return targets, nil
}

// Redacted returns a copy with secrets masked, safe to log.
func (c *Config) Redacted() Config {
	out := *c
	out.Gist.Token = mask(out.Gist.Token)
	out.API.SecretKey = mask(out.API.SecretKey)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
