package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"fintrack/internal/entity"
)

type httpProvider struct {
	client  *http.Client
	baseURL string
}

func (p httpProvider) getJSON(ctx context.Context, endpoint string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	client := p.client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrLookupFailed, response.StatusCode)
	}
	return json.NewDecoder(response.Body).Decode(target)
}

// IPAPICo queries ipapi.co.
type IPAPICo struct {
	httpProvider
}

func NewIPAPICo(client *http.Client, baseURL string) *IPAPICo {
	if baseURL == "" {
		baseURL = "https://ipapi.co"
	}
	return &IPAPICo{httpProvider{client: client, baseURL: strings.TrimRight(baseURL, "/")}}
}

func (p *IPAPICo) Name() string { return "ipapi.co" }

func (p *IPAPICo) Lookup(ctx context.Context, ip string) (entity.Location, error) {
	var body struct {
		Error       bool     `json:"error"`
		Reason      string   `json:"reason"`
		City        string   `json:"city"`
		Region      string   `json:"region"`
		CountryName string   `json:"country_name"`
		Timezone    string   `json:"timezone"`
		Org         string   `json:"org"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
	}
	if err := p.getJSON(ctx, p.baseURL+"/"+url.PathEscape(ip)+"/json/", &body); err != nil {
		return entity.Location{}, err
	}
	if body.Error || body.CountryName == "" {
		return entity.Location{}, fmt.Errorf("%w: %s", ErrLookupFailed, body.Reason)
	}
	return entity.Location{
		Country:   body.CountryName,
		City:      body.City,
		Region:    body.Region,
		Timezone:  body.Timezone,
		ISP:       body.Org,
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
	}, nil
}

// IPAPICom queries ip-api.com.
type IPAPICom struct {
	httpProvider
}

func NewIPAPICom(client *http.Client, baseURL string) *IPAPICom {
	if baseURL == "" {
		baseURL = "http://ip-api.com"
	}
	return &IPAPICom{httpProvider{client: client, baseURL: strings.TrimRight(baseURL, "/")}}
}

func (p *IPAPICom) Name() string { return "ip-api.com" }

func (p *IPAPICom) Lookup(ctx context.Context, ip string) (entity.Location, error) {
	var body struct {
		Status     string   `json:"status"`
		Message    string   `json:"message"`
		Country    string   `json:"country"`
		RegionName string   `json:"regionName"`
		City       string   `json:"city"`
		Timezone   string   `json:"timezone"`
		ISP        string   `json:"isp"`
		Lat        *float64 `json:"lat"`
		Lon        *float64 `json:"lon"`
	}
	if err := p.getJSON(ctx, p.baseURL+"/json/"+url.PathEscape(ip), &body); err != nil {
		return entity.Location{}, err
	}
	if body.Status != "success" {
		return entity.Location{}, fmt.Errorf("%w: %s", ErrLookupFailed, body.Message)
	}
	return entity.Location{
		Country:   body.Country,
		City:      body.City,
		Region:    body.RegionName,
		Timezone:  body.Timezone,
		ISP:       body.ISP,
		Latitude:  body.Lat,
		Longitude: body.Lon,
	}, nil
}
