// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kkyr/fig"

	"github.com/wneessen/geopicker/internal/locator"
	"github.com/wneessen/geopicker/internal/location"
)

const (
	configEnv         = "GEOPICKER"
	DefaultTextTpl    = `{{if .Address}}{{truncate .Address 48}}{{else if .HasLocation}}{{.LatLng}}{{else}}{{loc "No location"}}{{end}}`
	DefaultTooltipTpl = "{{loc \"Location\"}}: {{if .HasLocation}}{{.LatLng}}{{else}}-{{end}}\n" +
		"{{loc \"Address\"}}: {{if .Address}}{{.Address}}{{else}}-{{end}}\n" +
		"{{loc \"Status\"}}: {{loc .Status}}{{if .Error}} ({{.Error}}){{end}}\n" +
		"{{loc \"Updated\"}}: {{if .UpdateTime.IsZero}}-{{else}}{{naturalTime .UpdateTime}}{{end}}"
)

var (
	geocoderProviders = []string{"google", "nominatim", "opencage", "geocode-earth"}
	permissionSources = []string{"static", "geoclue"}
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Log struct {
		// Logs go to stderr if File is empty
		File       string `fig:"file"`
		MaxSizeMB  int    `fig:"max_size_mb" default:"10"`
		MaxBackups int    `fig:"max_backups" default:"3"`
		MaxAgeDays int    `fig:"max_age_days" default:"28"`
	} `fig:"log"`

	Location struct {
		Key      string        `fig:"key" default:"device"`
		Interval time.Duration `fig:"interval" default:"1s"`
		// Allowed values: high-accuracy, balanced, low-power, passive
		Priority string `fig:"priority" default:"high-accuracy"`
		// Distance in meters the location has to move before the address is fetched again
		RefetchDistance float64 `fig:"refetch_distance" default:"250"`

		File                   string `fig:"file"`
		GPSDHost               string `fig:"gpsd_host"`
		GPSDPort               string `fig:"gpsd_port"`
		IchnaeaEndpoint        string `fig:"ichnaea_endpoint"`
		DisableGeoIP           bool   `fig:"disable_geoip"`
		DisableGPSD            bool   `fig:"disable_gpsd"`
		DisableGeolocationFile bool   `fig:"disable_geolocation_file"`
		DisableICHNAEA         bool   `fig:"disable_ichnaea"`
	} `fig:"location"`

	Permissions struct {
		// Allowed values: static, geoclue
		Source     string `fig:"source" default:"static"`
		DenyFine   bool   `fig:"deny_fine"`
		DenyCoarse bool   `fig:"deny_coarse"`
	} `fig:"permissions"`

	GeoCoder struct {
		// Allowed values: google, nominatim, opencage, geocode-earth
		Provider        string        `fig:"provider" default:"google"`
		APIKey          string        `fig:"apikey"`
		BaseURL         string        `fig:"base_url"`
		Results         int           `fig:"results" default:"1"`
		CacheHitTTL     time.Duration `fig:"cache_hit_ttl" default:"12h"`
		CacheMissTTL    time.Duration `fig:"cache_miss_ttl" default:"30m"`
		CacheResolution int           `fig:"cache_resolution" default:"9"`
		DisableCache    bool          `fig:"disable_cache"`
	} `fig:"geocoder"`

	Picker struct {
		Zoom float64 `fig:"zoom" default:"10"`
		// Initial location of the picker as "<lat>,<lng>", the current location is used if empty
		Initial string `fig:"initial"`
		// LocateTimeout limits how long the pick command waits for a location fix
		LocateTimeout time.Duration `fig:"locate_timeout" default:"15s"`
	} `fig:"picker"`

	Intervals struct {
		Output time.Duration `fig:"output" default:"30s"`
	} `fig:"intervals"`

	Templates struct {
		Text    string `fig:"text"`
		Tooltip string `fig:"tooltip"`
	} `fig:"templates"`

	Server struct {
		Listen string `fig:"listen" default:"127.0.0.1:8765"`
	} `fig:"server"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Validate checks the configuration values and fills in the defaults that depend on the
// environment.
func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Location.Interval <= 0 {
		return fmt.Errorf("invalid location interval: %s", c.Location.Interval)
	}
	if _, err := locator.ParsePriority(c.Location.Priority); err != nil {
		return err
	}
	if c.Location.RefetchDistance < 0 {
		return fmt.Errorf("invalid refetch distance: %f", c.Location.RefetchDistance)
	}
	if !slices.Contains(permissionSources, strings.ToLower(c.Permissions.Source)) {
		return fmt.Errorf("invalid permission source: %s", c.Permissions.Source)
	}
	if !slices.Contains(geocoderProviders, strings.ToLower(c.GeoCoder.Provider)) {
		return fmt.Errorf("invalid geocoder provider: %s", c.GeoCoder.Provider)
	}
	if c.GeoCoder.Results < 1 {
		return fmt.Errorf("invalid number of geocoder results: %d", c.GeoCoder.Results)
	}
	if c.GeoCoder.CacheResolution < 0 || c.GeoCoder.CacheResolution > 15 {
		return fmt.Errorf("invalid geocoder cache resolution: %d", c.GeoCoder.CacheResolution)
	}
	if c.Picker.Zoom <= 0 {
		return fmt.Errorf("invalid picker zoom: %f", c.Picker.Zoom)
	}
	if c.Picker.LocateTimeout <= 0 {
		return fmt.Errorf("invalid picker locate timeout: %s", c.Picker.LocateTimeout)
	}
	if c.Picker.Initial != "" {
		if _, err := location.Parse(c.Picker.Initial); err != nil {
			return fmt.Errorf("invalid initial picker location: %w", err)
		}
	}
	if c.Intervals.Output <= 0 {
		return fmt.Errorf("invalid output interval: %s", c.Intervals.Output)
	}
	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}
	if c.Location.File == "" {
		home, _ := os.UserHomeDir()
		c.Location.File = filepath.Join(home, ".config", "geopicker", "geolocation")
	}

	return nil
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
