// Package availability queries the external bus availability source.
package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://ws.alibaba.ir/api/v2/bus/available"
	defaultTimeout = 15 * time.Second

	// The lookup always asks for a single passenger.
	passengerCount = 1
)

// Trip is one scheduled departure as the external source reports it.
// JSON tags follow the remote API's field spelling, including its
// "orgin" typo.
type Trip struct {
	DepartureTime       string `json:"departureTime"`
	AvailableSeats      int    `json:"availableSeats"`
	Price               int64  `json:"price"` // rial (minor units)
	CompanyName         string `json:"companyName"`
	BusType             string `json:"busType"`
	OriginTerminal      string `json:"orginTerminal"`
	DestinationTerminal string `json:"destinationTerminal"`
}

// Client looks up departures for an origin/destination/date triple.
type Client interface {
	Search(ctx context.Context, originCode, destinationCode int, requestDate string) ([]Trip, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewHTTPClient(cfg Config, log zerolog.Logger) *HTTPClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "availability").Logger(),
	}
}

// Search performs the availability lookup. requestDate is the ISO
// Gregorian form (YYYY-MM-DD). Non-2xx responses and undecodable bodies
// are errors.
func (c *HTTPClient) Search(ctx context.Context, originCode, destinationCode int, requestDate string) ([]Trip, error) {
	q := url.Values{}
	q.Set("orginCityCode", strconv.Itoa(originCode)) // remote API's spelling
	q.Set("destinationCityCode", strconv.Itoa(destinationCode))
	q.Set("requestDate", requestDate)
	q.Set("passengerCount", strconv.Itoa(passengerCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("availability request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("availability request: http %d", resp.StatusCode)
	}

	var out struct {
		Result struct {
			AvailableList []Trip `json:"availableList"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("availability decode: %w", err)
	}
	return out.Result.AvailableList, nil
}
