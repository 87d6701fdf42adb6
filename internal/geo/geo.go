// Package geo estimates delivery distance between two postal codes using a
// distance-matrix style HTTP API.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrLookup = errors.New("distance lookup failed")

// Estimate is the outcome of one lookup. Status is the provider's element status
// (OK, NOT_FOUND, ZERO_RESULTS); Meters and Text are only set when Status is OK.
type Estimate struct {
	Status string `json:"status"`
	Meters int    `json:"meters,omitempty"`
	Text   string `json:"text,omitempty"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, httpClient: httpClient}
}

type matrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Text  string `json:"text"`
				Value int    `json:"value"`
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// EstimateDistance looks up the road distance from origin to dest postal code.
func (c *Client) EstimateDistance(ctx context.Context, origin, dest string) (Estimate, error) {
	q := url.Values{}
	q.Set("origins", origin)
	q.Set("destinations", dest)
	q.Set("units", "metric")
	q.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/maps/api/distancematrix/json?"+q.Encode(), nil)
	if err != nil {
		return Estimate{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the API key; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return Estimate{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Estimate{}, fmt.Errorf("%w: status %d", ErrLookup, resp.StatusCode)
	}

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return Estimate{}, fmt.Errorf("%w: decode: %v", ErrLookup, err)
	}
	if mr.Status != "OK" {
		return Estimate{}, fmt.Errorf("%w: %s %s", ErrLookup, mr.Status, mr.ErrorMessage)
	}
	if len(mr.Rows) == 0 || len(mr.Rows[0].Elements) == 0 {
		return Estimate{Status: "ZERO_RESULTS"}, nil
	}
	el := mr.Rows[0].Elements[0]
	if el.Status != "OK" {
		return Estimate{Status: el.Status}, nil
	}
	return Estimate{Status: el.Status, Meters: el.Distance.Value, Text: el.Distance.Text}, nil
}
