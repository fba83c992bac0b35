// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

package screener

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/kuomat/Traffic-Slice/internal/traffic"
)

// earthRadiusKm is the mean Earth radius used by the Haversine formula.
const earthRadiusKm = 6371.0

// coordPattern matches decimal coordinate pairs like "40.7128,-74.0060" or
// "40.7128, -74.0060".
var coordPattern = regexp.MustCompile(`-?\d+\.\d+\s*,\s*-?\d+\.\d+`)

// DeviceLocator supplies the monitoring device's own approximate location.
// Implementations cache and debounce; Current never fails, falling back to
// (0,0) when no location was ever resolved.
type DeviceLocator interface {
	Current(ctx context.Context) (lat, lon float64)
}

// LocationScreener detects geolocation data leaking in traffic. Checks run
// in a fixed order per evidence string: known location-service hostnames,
// decimal coordinate pairs, structured coordinates and location keys inside
// JSON payloads, and finally location keywords in parameter or header
// position (kw= / kw:). The keyword fallback never matches keywords inside
// plain prose; "no location data" in a sentence is not a leak. Discovered
// coordinates are compared against the device's own location; a coordinate
// within the proximity threshold is the strongest signal and carries the
// distance in the finding.
type LocationScreener struct {
	setup        AlertSetup
	keywords     []string
	keywordParam *regexp.Regexp
	knownHosts   []string
	thresholdKm  float64
	locator      DeviceLocator
}

// NewLocationScreener builds the screener. Keywords and hosts are matched
// case-insensitively.
func NewLocationScreener(keywords, knownHosts []string, thresholdKm float64, locator DeviceLocator) *LocationScreener {
	lowered := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		return out
	}
	return &LocationScreener{
		setup: AlertSetup{
			AlertName: "Location Data Leak",
			Type:      AlertTypeLocation,
			Severity:  3,
		},
		keywords:     lowered(keywords),
		keywordParam: compileKeywordParam(lowered(keywords)),
		knownHosts:   lowered(knownHosts),
		thresholdKm:  thresholdKm,
		locator:      locator,
	}
}

// compileKeywordParam builds the fallback matcher: a keyword counts only in
// key position (URL parameter, form field, header name), i.e. followed by
// "=" or ":". Matching keywords inside free prose would flag any sentence
// that merely mentions a location.
func compileKeywordParam(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(
		`(?:^|[^a-z0-9_])(?:` + strings.Join(quoted, "|") + `)["']?\s*[=:]`,
	)
}

func (s *LocationScreener) Name() string      { return "location" }
func (s *LocationScreener) Setup() AlertSetup { return s.setup }

func (s *LocationScreener) Screen(ctx context.Context, ev traffic.Evidence) *Finding {
	if s.matchesKnownHost(strings.ToLower(ev.Host)) {
		return newFinding("Request to known location service detected")
	}

	for _, text := range ev.Strings {
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)

		if s.matchesKnownHost(lower) {
			return newFinding("Request to known location service detected")
		}
		if f := s.screenCoordinates(ctx, text); f != nil {
			return f
		}
		if f := s.screenJSON(ctx, text); f != nil {
			return f
		}
		if s.keywordParam != nil && s.keywordParam.MatchString(lower) {
			return newFinding("Location-related keyword detected")
		}
	}
	return nil
}

func (s *LocationScreener) matchesKnownHost(lower string) bool {
	for _, host := range s.knownHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

func (s *LocationScreener) containsKeyword(lower string) bool {
	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// screenCoordinates extracts decimal coordinate pairs from free text. The
// first pair inside the valid range decides the outcome: nearby pairs yield
// the strong finding carrying the distance, everything else the generic one.
func (s *LocationScreener) screenCoordinates(ctx context.Context, text string) *Finding {
	for _, match := range coordPattern.FindAllString(text, -1) {
		lat, lon, ok := parseCoordinatePair(match)
		if !ok {
			continue
		}
		if dist, nearby := s.distanceToDevice(ctx, lat, lon); nearby {
			return newFinding(fmt.Sprintf(
				"Nearby coordinate pair %.4f, %.4f detected in traffic (%.2f km from device location)",
				lat, lon, dist,
			))
		}
		return newFinding("Coordinate pair detected in traffic")
	}
	return nil
}

// screenJSON decodes JSON evidence and walks it for structured coordinates
// and location-keyword keys. Undecodable text is simply not JSON evidence.
func (s *LocationScreener) screenJSON(ctx context.Context, text string) *Finding {
	var data interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil
	}

	pairs, keyword := s.walkJSON(data)
	for _, p := range pairs {
		if dist, nearby := s.distanceToDevice(ctx, p.lat, p.lon); nearby {
			return newFinding(fmt.Sprintf(
				"Nearby coordinate pair %.4f, %.4f detected in JSON payload (%.2f km from device location)",
				p.lat, p.lon, dist,
			))
		}
	}
	if keyword {
		return newFinding("Location-related data detected in JSON payload")
	}
	return nil
}

type coordPair struct {
	lat, lon float64
}

// walkJSON recursively collects {lat,lng} / {latitude,longitude} value
// pairs and reports whether any key matches the location vocabulary.
func (s *LocationScreener) walkJSON(node interface{}) ([]coordPair, bool) {
	var pairs []coordPair
	keyword := false

	switch v := node.(type) {
	case map[string]interface{}:
		if p, ok := extractPair(v, "lat", "lng"); ok {
			pairs = append(pairs, p)
		}
		if p, ok := extractPair(v, "latitude", "longitude"); ok {
			pairs = append(pairs, p)
		}
		for key, val := range v {
			if s.containsKeyword(strings.ToLower(key)) {
				keyword = true
			}
			childPairs, childKeyword := s.walkJSON(val)
			pairs = append(pairs, childPairs...)
			keyword = keyword || childKeyword
		}
	case []interface{}:
		for _, item := range v {
			childPairs, childKeyword := s.walkJSON(item)
			pairs = append(pairs, childPairs...)
			keyword = keyword || childKeyword
		}
	}
	return pairs, keyword
}

// extractPair pulls a valid coordinate pair from sibling numeric keys.
func extractPair(m map[string]interface{}, latKey, lonKey string) (coordPair, bool) {
	lat, ok1 := jsonNumber(m[latKey])
	lon, ok2 := jsonNumber(m[lonKey])
	if !ok1 || !ok2 || !validCoordinate(lat, lon) {
		return coordPair{}, false
	}
	return coordPair{lat: lat, lon: lon}, true
}

func jsonNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// parseCoordinatePair splits a regex match into a validated lat/lon pair.
func parseCoordinatePair(match string) (lat, lon float64, ok bool) {
	parts := strings.SplitN(match, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || !validCoordinate(lat, lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

func validCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// distanceToDevice computes the great-circle distance from the device's
// cached location and reports whether it is within the proximity threshold.
func (s *LocationScreener) distanceToDevice(ctx context.Context, lat, lon float64) (float64, bool) {
	devLat, devLon := s.locator.Current(ctx)
	dist := haversineKm(devLat, devLon, lat, lon)
	return dist, dist <= s.thresholdKm
}

// haversineKm returns the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
