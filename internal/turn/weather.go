package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
)

const defaultWeatherURL = "https://api.open-meteo.com/v1/forecast"

func (ts Toolset) weatherTool() Tool {
	baseURL := ts.WeatherURL
	if baseURL == "" {
		baseURL = defaultWeatherURL
	}
	return Tool{
		Name:        "getWeather",
		Description: "Get the current weather at a location",
		Parameters: objectSchema(map[string]*jsonschema.Schema{
			"latitude":  numberSchema("Latitude of the location"),
			"longitude": numberSchema("Longitude of the location"),
		}, "latitude", "longitude"),
		Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			latitude, err := numberArg(args, "latitude")
			if err != nil {
				return nil, err
			}
			longitude, err := numberArg(args, "longitude")
			if err != nil {
				return nil, err
			}

			query := url.Values{}
			query.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
			query.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
			query.Set("current", "temperature_2m")
			query.Set("hourly", "temperature_2m")
			query.Set("daily", "sunrise,sunset")
			query.Set("timezone", "auto")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+query.Encode(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return nil, fmt.Errorf("fetch weather: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("fetch weather: unexpected status %d", resp.StatusCode)
			}

			var weather map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&weather); err != nil {
				return nil, fmt.Errorf("decode weather response: %w", err)
			}
			return weather, nil
		},
	}
}
