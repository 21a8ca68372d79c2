package firebase

import (
	"context"
	"fmt"
	"net/http"

	"github.com/and161185/place-keeper/internal/errs"
	"github.com/and161185/place-keeper/internal/remote"
)

// Geocoder implements remote.Geocoder on the Google geocode API. Only the
// first (best) result's formatted address is surfaced.
type Geocoder struct {
	c      *Client
	base   string
	apiKey string
}

var _ remote.Geocoder = (*Geocoder)(nil)

// NewGeocoder constructs a geocoder for the given API base and key.
func NewGeocoder(c *Client, baseURL, apiKey string) *Geocoder {
	return &Geocoder{c: c, base: baseURL, apiKey: apiKey}
}

// ReverseGeocode returns the formatted address for the coordinates.
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	u := fmt.Sprintf("%s/maps/api/geocode/json?latlng=%g,%g&key=%s", g.base, lat, lng, g.apiKey)
	var resp struct {
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := g.c.doJSON(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 || resp.Results[0].FormattedAddress == "" {
		return "", fmt.Errorf("geocode %g,%g (status %s): %w", lat, lng, resp.Status, errs.ErrNotFound)
	}
	return resp.Results[0].FormattedAddress, nil
}
