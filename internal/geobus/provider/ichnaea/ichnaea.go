// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package ichnaea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/geopicker/internal/geobus"
	"github.com/wneessen/geopicker/internal/http"
	"github.com/wneessen/geopicker/internal/location"
)

const (
	DefaultEndpoint = "https://api.beacondb.net/v1/geolocate"
	lookupTimeout   = time.Second * 5
	wifiScanTime    = time.Minute * 2
	name            = "ichnaea"
)

// GeolocationICHNAEAProvider locates the device through an Ichnaea compatible service, using
// nearby WiFi access points when a wireless interface is available and the public IP otherwise.
type GeolocationICHNAEAProvider struct {
	name     string
	endpoint string
	http     *http.Client
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (location.Data, float64, error)
	scanFn   func() ([]WirelessNetwork, error)

	apLock sync.RWMutex
	aps    []WirelessNetwork
}

type APIResult struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

type WirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

// NewGeolocationICHNAEAProvider returns a provider for the given endpoint. An empty endpoint
// selects beaconDB.
func NewGeolocationICHNAEAProvider(http *http.Client, endpoint string) (*GeolocationICHNAEAProvider, error) {
	if http == nil {
		return nil, errors.New("http client is required")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	provider := &GeolocationICHNAEAProvider{
		name:     name,
		endpoint: endpoint,
		http:     http,
		period:   time.Minute * 5,
		ttl:      time.Hour * 1,
		scanFn:   scanWifiAccessPoints,
	}
	provider.locateFn = provider.locate
	return provider, nil
}

func (p *GeolocationICHNAEAProvider) Name() string {
	return p.name
}

// LookupStream periodically locates the device and emits a result whenever the position changes.
func (p *GeolocationICHNAEAProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go p.monitorWifiAccessPoints(ctx)
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}
		firstRun := true

		for {
			if !firstRun {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.period):
				}
			}
			firstRun = false

			loc, acc, err := p.locateFn(ctx)
			if err != nil {
				continue
			}
			if !state.HasChanged(loc) {
				continue
			}
			state.Update(loc)

			select {
			case <-ctx.Done():
				return
			case out <- p.createResult(key, loc, acc):
			}
		}
	}()
	return out
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationICHNAEAProvider) createResult(key string, loc location.Data, acc float64) geobus.Result {
	return geobus.Result{
		Key:            key,
		Location:       loc,
		AccuracyMeters: acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

func (p *GeolocationICHNAEAProvider) monitorWifiAccessPoints(ctx context.Context) {
	firstRun := true
	for {
		if !firstRun {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wifiScanTime):
			}
		}
		firstRun = false

		list, err := p.scanFn()
		if err != nil {
			continue
		}
		p.apLock.Lock()
		p.aps = list
		p.apLock.Unlock()
	}
}

// scanWifiAccessPoints lists the access points seen by all wireless station interfaces. Networks
// that opted out of mapping via the "_nomap" suffix are skipped.
func scanWifiAccessPoints() ([]WirelessNetwork, error) {
	wlan, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create wifi client: %w", err)
	}
	defer func() {
		_ = wlan.Close()
	}()

	ifaces, err := wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var list []WirelessNetwork
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		aps, err := wlan.AccessPoints(iface)
		if err != nil {
			continue
		}
		for _, ap := range aps {
			if ap.SSID == "" || ap.SSID[0] == '\x00' || strings.HasSuffix(ap.SSID, "_nomap") {
				continue
			}
			list = append(list, WirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}

	return list, nil
}

func (p *GeolocationICHNAEAProvider) locate(ctx context.Context) (location.Data, float64, error) {
	p.apLock.RLock()
	wifiList := p.aps
	p.apLock.RUnlock()

	type request struct {
		ConsiderIP   bool              `json:"considerIp"`
		Accesspoints []WirelessNetwork `json:"wifiAccessPoints,omitempty"`
	}
	req := request{
		ConsiderIP:   true,
		Accesspoints: wifiList,
	}
	bodyBuffer := bytes.NewBuffer(nil)
	if err := json.NewEncoder(bodyBuffer).Encode(req); err != nil {
		return location.Data{}, 0, fmt.Errorf("failed to encode wifi list to JSON: %w", err)
	}

	ctxHttp, cancelHttp := context.WithTimeout(ctx, lookupTimeout)
	defer cancelHttp()
	result := new(APIResult)
	if _, err := p.http.Post(ctxHttp, p.endpoint, result, bodyBuffer,
		map[string]string{"Content-Type": "application/json"}); err != nil {
		return location.Data{}, 0, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	loc, err := location.New(geobus.Truncate(result.Location.Latitude, geobus.TruncPrecision),
		geobus.Truncate(result.Location.Longitude, geobus.TruncPrecision))
	if err != nil {
		return location.Data{}, 0, fmt.Errorf("geolocation API returned an invalid position: %w", err)
	}
	return loc, geobus.Truncate(result.Accuracy, geobus.TruncPrecision), nil
}
