// Package weather looks up current conditions from OpenWeatherMap.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"cityflow/internal/accident"
)

const DefaultEndpoint = "https://api.openweathermap.org/data/2.5/weather"

var ErrStatus = errors.New("unexpected response status")

type Client struct {
	endpoint string
	apiKey   string
	units    string
	client   *http.Client
}

// NewClient returns a client for endpoint. Units is passed through to the
// API; an empty value keeps the API default of Kelvin.
func NewClient(endpoint, apiKey, units string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		units:    units,
		client:   &http.Client{Timeout: timeout},
	}
}

// Get returns the current weather at lat, lon.
func (c *Client) Get(ctx context.Context, lat, lon float64) (*accident.Weather, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	if c.units != "" {
		q.Set("units", c.units)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather request: %w: %d", ErrStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	return Parse(body)
}

// Parse reads a current-weather response body.
func Parse(body []byte) (*accident.Weather, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("weather response is not valid JSON")
	}
	res := gjson.GetManyBytes(body,
		"main.temp", "rain.3h", "wind.speed", "visibility", "sys.sunrise", "sys.sunset", "weather.0.main")

	w := &accident.Weather{
		Temperature: res[0].Float(),
		WindSpeed:   res[2].Float(),
		Sunrise:     res[4].Int(),
		Sunset:      res[5].Int(),
		Category:    res[6].String(),
	}
	if res[1].Exists() {
		v := res[1].Float()
		w.Rain3h = &v
	}
	if res[3].Exists() {
		v := res[3].Float()
		w.Visibility = &v
	}
	return w, nil
}
