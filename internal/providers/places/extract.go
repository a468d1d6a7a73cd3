package places

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	placeIDParam  = regexp.MustCompile(`place_id[=:]([A-Za-z0-9_-]+)`)
	placeIDData   = regexp.MustCompile(`!1s(ChIJ[A-Za-z0-9_-]+)`)
	placeNamePath = regexp.MustCompile(`/maps/(?:place|search)/([^/@?]+)`)
	coordsPath    = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)
)

// Ordered from most to least specific.
var mapsURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<meta[^>]+content="(https://(?:www\.)?google\.[a-z.]+/maps/[^"]+)"`),
	regexp.MustCompile(`(?i)<link[^>]+href="[^"]*?(https://(?:www\.)?google\.[a-z.]+/maps/[^"&]+)`),
	regexp.MustCompile(`(?i)(https://(?:www\.)?google\.[a-z.]+/maps/(?:place|search)/[^\s"'<>\\]+)`),
	regexp.MustCompile(`(?i)(https://(?:www\.)?google\.[a-z.]+/maps/[^\s"'<>\\]+)`),
	regexp.MustCompile(`(?i)(https%3A%2F%2F(?:www\.)?google\.\w+%2Fmaps%2F[^\s"'<>]+)`),
	regexp.MustCompile(`(?i)<meta[^>]+content="\d+;\s*url=(https://[^"]+)"`),
	regexp.MustCompile(`(?i)window\.location(?:\.href\s*=\s*|\.replace\s*\(\s*|\.assign\s*\(\s*)["'](https://[^"']+)`),
	regexp.MustCompile(`(?i)href="(https://[^"]*google\.[^"]*/maps/[^"]+)"`),
}

type coords struct {
	Lat float64
	Lng float64
}

func isMapsURL(raw string) bool {
	return strings.Contains(raw, "google.com/maps") || strings.Contains(raw, "maps.google.")
}

func looksLikeURL(input string) bool {
	return strings.HasPrefix(input, "http") ||
		strings.Contains(input, "google.com/maps") ||
		strings.Contains(input, "goo.gl/") ||
		strings.Contains(input, "maps.app.goo.gl")
}

func findMapsURLInHTML(body string) string {
	for _, pattern := range mapsURLPatterns {
		m := pattern.FindStringSubmatch(body)
		if len(m) < 2 {
			continue
		}
		found := m[1]
		if strings.Contains(found, "%") {
			if decoded, err := url.QueryUnescape(found); err == nil {
				found = decoded
			}
		}
		return found
	}
	return ""
}

func extractPlaceID(raw string) string {
	if m := placeIDParam.FindStringSubmatch(raw); len(m) == 2 {
		return m[1]
	}
	if m := placeIDData.FindStringSubmatch(raw); len(m) == 2 {
		return m[1]
	}
	return ""
}

func extractName(raw string) string {
	m := placeNamePath.FindStringSubmatch(raw)
	if len(m) != 2 {
		return ""
	}
	name, err := url.QueryUnescape(m[1])
	if err != nil {
		name = m[1]
	}
	return strings.TrimSpace(strings.ReplaceAll(name, "+", " "))
}

func extractCoords(raw string) (coords, bool) {
	m := coordsPath.FindStringSubmatch(raw)
	if len(m) != 3 {
		return coords{}, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return coords{}, false
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return coords{}, false
	}
	return coords{Lat: lat, Lng: lng}, true
}
