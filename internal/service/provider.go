// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/wneessen/geopicker/internal/config"
	"github.com/wneessen/geopicker/internal/geobus"
	"github.com/wneessen/geopicker/internal/geobus/provider/geoip"
	"github.com/wneessen/geopicker/internal/geobus/provider/geolocation_file"
	"github.com/wneessen/geopicker/internal/geobus/provider/gpsd"
	"github.com/wneessen/geopicker/internal/geobus/provider/ichnaea"
	"github.com/wneessen/geopicker/internal/geocode"
	geocodeearth "github.com/wneessen/geopicker/internal/geocode/provider/geocode-earth"
	"github.com/wneessen/geopicker/internal/geocode/provider/google"
	"github.com/wneessen/geopicker/internal/geocode/provider/opencage"
	nominatim "github.com/wneessen/geopicker/internal/geocode/provider/osm-nominatim"
	"github.com/wneessen/geopicker/internal/http"
	"github.com/wneessen/geopicker/internal/locator"
	"github.com/wneessen/geopicker/internal/logger"
	"github.com/wneessen/geopicker/internal/permission"
)

var (
	ErrMissingAPIKey = errors.New("geocoder requires an API key")
	ErrNoProviders   = errors.New("no geolocation providers enabled")
)

// selectGeobusProviders returns the enabled location sources for the given priority. Higher
// priorities use more power hungry sources:
//
//	high-accuracy: file, gpsd, ichnaea, geoip
//	balanced:      file, ichnaea, geoip
//	low-power:     file, geoip
//	passive:       file
func (s *Service) selectGeobusProviders(priority locator.Priority) ([]geobus.Provider, error) {
	httpClient := http.New(s.logger)
	conf := s.config.Location
	var provider []geobus.Provider

	if !conf.DisableGeolocationFile {
		provider = append(provider, geolocation_file.NewGeolocationFileProvider(conf.File))
	}

	if !conf.DisableGPSD && priority == locator.HighAccuracy {
		provider = append(provider, gpsd.NewGeolocationGPSDProvider(conf.GPSDHost, conf.GPSDPort))
	}

	if !conf.DisableICHNAEA && priority <= locator.Balanced {
		mls, err := ichnaea.NewGeolocationICHNAEAProvider(httpClient, conf.IchnaeaEndpoint)
		if err != nil {
			s.logger.Error("failed to create ICHNAEA provider", logger.Err(err))
		} else {
			provider = append(provider, mls)
		}
	}

	if !conf.DisableGeoIP && priority <= locator.LowPower {
		provider = append(provider, geoip.NewGeolocationGeoIPProvider(httpClient))
	}

	if len(provider) == 0 {
		return nil, ErrNoProviders
	}
	return provider, nil
}

// selectGeocodeProvider returns the configured geocoder, wrapped in a response cache unless
// caching is disabled.
func selectGeocodeProvider(conf *config.Config, log *logger.Logger, lang language.Tag) (geocode.Geocoder, error) {
	var geocoder geocode.Geocoder
	apikey := conf.GeoCoder.APIKey

	switch strings.ToLower(conf.GeoCoder.Provider) {
	case "google":
		coder, err := google.New(http.New(log), conf.GeoCoder.BaseURL, apikey, lang)
		if err != nil {
			return nil, fmt.Errorf("failed to create google geocoder: %w", err)
		}
		geocoder = coder.WithLimit(conf.GeoCoder.Results)
	case "nominatim":
		if conf.GeoCoder.BaseURL != "" {
			geocoder = nominatim.NewWithEndpoint(http.New(log), lang, conf.GeoCoder.BaseURL)
			break
		}
		geocoder = nominatim.New(http.New(log), lang)
	case "opencage":
		if apikey == "" {
			return nil, fmt.Errorf("opencage: %w", ErrMissingAPIKey)
		}
		geocoder = opencage.New(http.New(log), lang, apikey, conf.GeoCoder.Results)
	case "geocode-earth":
		if apikey == "" {
			return nil, fmt.Errorf("geocode-earth: %w", ErrMissingAPIKey)
		}
		geocoder = geocodeearth.New(http.New(log), lang, apikey, conf.GeoCoder.Results)
	default:
		return nil, fmt.Errorf("unsupported geocoder type: %s", conf.GeoCoder.Provider)
	}

	if conf.GeoCoder.DisableCache {
		return geocoder, nil
	}
	return geocode.NewCachedGeocoderWithResolution(geocoder, conf.GeoCoder.CacheHitTTL, conf.GeoCoder.CacheMissTTL,
		conf.GeoCoder.CacheResolution), nil
}

func selectPermissionChecker(conf *config.Config) (permission.Checker, error) {
	switch strings.ToLower(conf.Permissions.Source) {
	case "static":
		return permission.NewStatic(conf.Permissions.DenyFine, conf.Permissions.DenyCoarse), nil
	case "geoclue":
		return permission.NewGeoClue(), nil
	default:
		return nil, fmt.Errorf("unsupported permission source: %s", conf.Permissions.Source)
	}
}
