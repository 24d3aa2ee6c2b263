// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

const (
	expectLogLevel        = slog.LevelInfo
	expectLocationKey     = "device"
	expectInterval        = time.Second
	expectPriority        = "high-accuracy"
	expectProvider        = "google"
	expectCacheResolution = 9
	expectZoom            = 10.0
	expectLocateTimeout   = time.Second * 15
	expectIntervalOutput  = time.Second * 30
	expectListen          = "127.0.0.1:8765"
)

// googleKeyPattern matches the format of Google Maps API keys
var googleKeyPattern = regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)

func TestNew_apiKey(t *testing.T) {
	t.Run("the default API key is empty", func(t *testing.T) {
		t.Setenv("GEOPICKER_GEOCODER_APIKEY", "")
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.GeoCoder.APIKey != "" {
			t.Error("expected the default API key to be empty")
		}
	})
	t.Run("no API key is committed to the module", func(t *testing.T) {
		root := filepath.Join("..", "..")
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				if name := entry.Name(); name == ".git" || strings.HasPrefix(name, "_") {
					return filepath.SkipDir
				}
				return nil
			}
			switch filepath.Ext(path) {
			case ".go", ".toml", ".yaml", ".yml", ".json", ".env", ".po":
			default:
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if googleKeyPattern.Match(data) {
				t.Errorf("file %s contains a Google API key", path)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("failed to walk module tree: %s", err)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("new config with all defaults set", func(t *testing.T) {
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		checkDefaults(t, conf)
		if conf.Templates.Text != DefaultTextTpl {
			t.Errorf("expected default text template, got %q", conf.Templates.Text)
		}
		if conf.Templates.Tooltip != DefaultTooltipTpl {
			t.Errorf("expected default tooltip template, got %q", conf.Templates.Tooltip)
		}
		if !strings.HasSuffix(conf.Location.File, "geolocation") {
			t.Errorf("expected default geolocation file, got %q", conf.Location.File)
		}
		if conf.GeoCoder.APIKey != "" {
			t.Error("expected no default API key")
		}
	})
	t.Run("the API key is read from the environment", func(t *testing.T) {
		t.Setenv("GEOPICKER_GEOCODER_APIKEY", "from-env")
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.GeoCoder.APIKey != "from-env" {
			t.Errorf("expected API key to be %q, got %q", "from-env", conf.GeoCoder.APIKey)
		}
	})
	t.Run("the locale is derived from LC_MESSAGES", func(t *testing.T) {
		t.Setenv("LC_MESSAGES", "de_DE.UTF-8")
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.Locale != "de-DE" {
			t.Errorf("expected locale to be %q, got %q", "de-DE", conf.Locale)
		}
	})

	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"invalid log level", "GEOPICKER_LOGLEVEL", "invalid"},
		{"invalid priority", "GEOPICKER_LOCATION_PRIORITY", "turbo"},
		{"invalid location interval", "GEOPICKER_LOCATION_INTERVAL", "-1s"},
		{"invalid refetch distance", "GEOPICKER_LOCATION_REFETCH_DISTANCE", "-5"},
		{"invalid permission source", "GEOPICKER_PERMISSIONS_SOURCE", "android"},
		{"invalid provider", "GEOPICKER_GEOCODER_PROVIDER", "bing"},
		{"invalid result count", "GEOPICKER_GEOCODER_RESULTS", "-1"},
		{"invalid cache resolution", "GEOPICKER_GEOCODER_CACHE_RESOLUTION", "16"},
		{"invalid zoom", "GEOPICKER_PICKER_ZOOM", "-1"},
		{"invalid initial picker location", "GEOPICKER_PICKER_INITIAL", "somewhere"},
		{"invalid output interval", "GEOPICKER_INTERVALS_OUTPUT", "-5s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			if _, err := New(); err == nil {
				t.Error("expected config to fail, but didn't")
			}
		})
	}
}

func TestNewFromFile(t *testing.T) {
	t.Run("reading config from valid file succeeds", func(t *testing.T) {
		conf, err := NewFromFile("../../etc", "config.toml")
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		checkDefaults(t, conf)
		if conf.Locale != "en" {
			t.Errorf("expected locale to be %q, got %q", "en", conf.Locale)
		}
	})
	t.Run("reading config from non-existent file fails", func(t *testing.T) {
		_, err := NewFromFile("../../etc", "non-existent.toml")
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
	t.Run("reading invalid config file fails", func(t *testing.T) {
		_, err := NewFromFile("../../testdata", "invalid.toml")
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
}

func checkDefaults(t *testing.T, conf *Config) {
	t.Helper()
	if conf.LogLevel != expectLogLevel {
		t.Errorf("expected log level to be: %s, got %s", expectLogLevel, conf.LogLevel)
	}
	if conf.Location.Key != expectLocationKey {
		t.Errorf("expected location key to be: %s, got %s", expectLocationKey, conf.Location.Key)
	}
	if conf.Location.Interval != expectInterval {
		t.Errorf("expected location interval to be: %s, got %s", expectInterval, conf.Location.Interval)
	}
	if conf.Location.Priority != expectPriority {
		t.Errorf("expected priority to be: %s, got %s", expectPriority, conf.Location.Priority)
	}
	if conf.GeoCoder.Provider != expectProvider {
		t.Errorf("expected geocoder provider to be: %s, got %s", expectProvider, conf.GeoCoder.Provider)
	}
	if conf.GeoCoder.CacheResolution != expectCacheResolution {
		t.Errorf("expected cache resolution to be: %d, got %d", expectCacheResolution,
			conf.GeoCoder.CacheResolution)
	}
	if conf.Picker.Zoom != expectZoom {
		t.Errorf("expected picker zoom to be: %f, got %f", expectZoom, conf.Picker.Zoom)
	}
	if conf.Picker.LocateTimeout != expectLocateTimeout {
		t.Errorf("expected picker locate timeout to be: %s, got %s", expectLocateTimeout, conf.Picker.LocateTimeout)
	}
	if conf.Intervals.Output != expectIntervalOutput {
		t.Errorf("expected output interval to be: %s, got %s", expectIntervalOutput, conf.Intervals.Output)
	}
	if conf.Server.Listen != expectListen {
		t.Errorf("expected listen address to be: %s, got %s", expectListen, conf.Server.Listen)
	}
}
