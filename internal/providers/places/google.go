package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPlacesBaseURL = "https://places.googleapis.com/v1"
	maxHTMLBytes         = 200_000
	locationBiasRadius   = 500.0
)

type userAgent struct {
	label   string
	headers map[string]string
}

// Short links behave differently per client: crawlers usually get a
// server-side redirect while browsers get an HTML page with the target URL.
var userAgents = []userAgent{
	{label: "bot", headers: map[string]string{"User-Agent": "facebookexternalhit/1.1"}},
	{label: "browser", headers: map[string]string{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "en-US,en;q=0.9",
	}},
}

type GoogleConfig struct {
	APIKey  string
	Timeout time.Duration
	// BaseURL overrides the Places API origin.
	BaseURL string
}

type GoogleResolver struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewGoogle(cfg GoogleConfig, client *http.Client, log *zap.Logger) *GoogleResolver {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultPlacesBaseURL
	}
	return &GoogleResolver{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		http:    client,
		log:     log.Named("places.google"),
	}
}

func (r *GoogleResolver) Resolve(ctx context.Context, input string) (Place, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return Place{}, ErrEmptyInput
	}
	if r.apiKey == "" {
		r.log.Warn("GOOGLE_MAPS_API_KEY is not set, place lookups are limited")
	}

	if !looksLikeURL(text) {
		return r.searchText(ctx, text, nil)
	}

	target := text
	if !strings.HasPrefix(target, "http") {
		target = "https://" + target
	}
	if expanded := r.followRedirects(ctx, target); expanded != "" {
		target = expanded
	}

	if placeID := extractPlaceID(target); placeID != "" {
		place := Place{PlaceID: placeID, Name: extractName(target)}
		if details, err := r.details(ctx, placeID); err == nil {
			if details.Name != "" {
				place.Name = details.Name
			}
			place.Address = details.Address
		} else {
			r.log.Debug("place details unavailable", zap.Error(err))
		}
		if place.Name == "" {
			place.Name = "Business"
		}
		return place, nil
	}

	name := extractName(target)
	point, hasPoint := extractCoords(target)
	var bias *coords
	if hasPoint {
		bias = &point
	}
	switch {
	case name != "":
		return r.searchText(ctx, name, bias)
	case hasPoint:
		query := strconv.FormatFloat(point.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(point.Lng, 'f', -1, 64)
		return r.searchText(ctx, query, bias)
	default:
		return Place{}, fmt.Errorf("%w: no place id, name or coordinates in url", ErrNotFound)
	}
}

// followRedirects returns the first Google Maps URL reached by any of the
// user-agent strategies, or "" when none produced one.
func (r *GoogleResolver) followRedirects(ctx context.Context, target string) string {
	for _, ua := range userAgents {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return ""
		}
		for k, v := range ua.headers {
			req.Header.Set(k, v)
		}

		resp, err := r.http.Do(req)
		if err != nil {
			r.log.Debug("short link request failed", zap.String("strategy", ua.label), zap.Error(err))
			if ctx.Err() != nil {
				return ""
			}
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxHTMLBytes))
		resp.Body.Close()

		final := resp.Request.URL.String()
		r.log.Debug("short link followed",
			zap.String("strategy", ua.label),
			zap.Int("status_code", resp.StatusCode),
		)
		if isMapsURL(final) {
			return final
		}
		if found := findMapsURLInHTML(string(body)); found != "" {
			return found
		}
	}
	return ""
}

type displayName struct {
	Text string `json:"text"`
}

type apiPlace struct {
	ID               string      `json:"id"`
	DisplayName      displayName `json:"displayName"`
	FormattedAddress string      `json:"formattedAddress"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type searchTextRequest struct {
	TextQuery    string        `json:"textQuery"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type searchTextResponse struct {
	Places []apiPlace `json:"places"`
}

func (r *GoogleResolver) searchText(ctx context.Context, query string, bias *coords) (Place, error) {
	if r.apiKey == "" {
		return Place{}, fmt.Errorf("%w: text search requires an api key", ErrNotFound)
	}

	payload := searchTextRequest{TextQuery: query}
	if bias != nil {
		payload.LocationBias = &locationBias{Circle: circle{
			Center: latLng{Latitude: bias.Lat, Longitude: bias.Lng},
			Radius: locationBiasRadius,
		}}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Place{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/places:searchText", bytes.NewReader(raw))
	if err != nil {
		return Place{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-FieldMask", "places.id,places.displayName,places.formattedAddress")

	var out searchTextResponse
	if err := r.do(req, &out); err != nil {
		return Place{}, err
	}
	r.log.Debug("places text search", zap.Int("results", len(out.Places)))
	if len(out.Places) == 0 || out.Places[0].ID == "" {
		return Place{}, ErrNotFound
	}

	first := out.Places[0]
	name := first.DisplayName.Text
	if name == "" {
		name = query
	}
	return Place{PlaceID: first.ID, Name: name, Address: first.FormattedAddress}, nil
}

func (r *GoogleResolver) details(ctx context.Context, placeID string) (Place, error) {
	if r.apiKey == "" {
		return Place{}, fmt.Errorf("%w: details require an api key", ErrNotFound)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/places/"+url.PathEscape(placeID), nil)
	if err != nil {
		return Place{}, err
	}
	req.Header.Set("X-Goog-FieldMask", "displayName,formattedAddress")

	var out apiPlace
	if err := r.do(req, &out); err != nil {
		return Place{}, err
	}
	return Place{PlaceID: placeID, Name: out.DisplayName.Text, Address: out.FormattedAddress}, nil
}

func (r *GoogleResolver) do(req *http.Request, out any) error {
	req.Header.Set("X-Goog-Api-Key", r.apiKey)
	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("places api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("places api: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
