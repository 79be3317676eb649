// Package datagov wraps the data.gov.in open-data API and normalizes its
// response shape into internal records.
package datagov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gramseva/mgnrega-tracker/internal/config"
	"github.com/gramseva/mgnrega-tracker/internal/model"
)

const (
	districtsResource   = "/mgnrega-districts"
	performanceResource = "/mgnrega-performance"
)

// Client talks to the data.gov.in API. A single failed attempt is treated as
// source-unavailable for the cycle; there is no retry.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pageLimit  int
	stateName  string
	stateCode  string
	limiter    *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a data.gov.in client for one state's MGNREGA resources.
func NewClient(cfg config.DataGovConfig, ingest config.IngestConfig, opts ...Option) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = 1000
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pageLimit:  pageLimit,
		stateName:  ingest.StateName,
		stateCode:  ingest.StateCode,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common data.gov.in response wrapper.
type envelope struct {
	Total   int               `json:"total"`
	Count   int               `json:"count"`
	Records []json.RawMessage `json:"records"`
}

type districtRecord struct {
	ID           string `json:"id"`
	DistrictCode string `json:"district_code"`
	DistrictName string `json:"district_name"`
	StateName    string `json:"state_name"`
	StateCode    string `json:"state_code"`
}

type performanceRecord struct {
	Month           string `json:"month"`
	FinYear         string `json:"fin_year"`
	Households      string `json:"total_households_worked"`
	Persons         string `json:"total_individuals_worked"`
	WorkDays        string `json:"persondays_generated"`
	WagesPaid       string `json:"wages_paid"`
	MaterialCost    string `json:"material_cost"`
	Expenditure     string `json:"total_expenditure"`
	WorksCompleted  string `json:"works_completed"`
	WorksOngoing    string `json:"works_ongoing"`
	WorksSanctioned string `json:"works_sanctioned"`
}

// Probe issues a minimal request to the districts resource and reports whether
// the API is reachable. It never returns an error.
func (c *Client) Probe(ctx context.Context) bool {
	if _, err := c.get(ctx, districtsResource, url.Values{"limit": {"1"}}); err != nil {
		zap.L().Debug("datagov: probe failed", zap.Error(err))
		return false
	}
	return true
}

// FetchDistricts requests the state's district list and maps it to the
// internal shape. A district without an explicit code gets one synthesized
// from the state code and the record's position.
func (c *Client) FetchDistricts(ctx context.Context) ([]model.District, error) {
	params := url.Values{
		"limit": {strconv.Itoa(c.pageLimit)},
	}
	params.Set("filters[state_name]", c.stateName)

	env, err := c.get(ctx, districtsResource, params)
	if err != nil {
		return nil, eris.Wrap(err, "datagov: fetch districts")
	}

	districts := make([]model.District, 0, len(env.Records))
	for i, raw := range env.Records {
		var rec districtRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			zap.L().Warn("datagov: skipping malformed district record", zap.Error(err))
			continue
		}
		code := rec.DistrictCode
		if code == "" {
			code = synthesizeCode(c.stateCode, rec.ID, i)
		}
		stateCode := rec.StateCode
		if stateCode == "" {
			stateCode = c.stateCode
		}
		districts = append(districts, model.District{
			Code:      code,
			Name:      rec.DistrictName,
			StateName: rec.StateName,
			StateCode: stateCode,
		})
	}
	return districts, nil
}

// FetchPerformance requests one district's monthly records for a year.
// Missing or unparseable numeric fields are coerced to zero.
func (c *Client) FetchPerformance(ctx context.Context, districtCode string, year int) ([]model.PerformanceRecord, error) {
	params := url.Values{
		"limit": {strconv.Itoa(c.pageLimit)},
	}
	params.Set("filters[district_code]", districtCode)
	params.Set("filters[fin_year]", strconv.Itoa(year))

	env, err := c.get(ctx, performanceResource, params)
	if err != nil {
		return nil, eris.Wrapf(err, "datagov: fetch performance %s", districtCode)
	}

	records := make([]model.PerformanceRecord, 0, len(env.Records))
	for _, raw := range env.Records {
		var rec performanceRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			zap.L().Warn("datagov: skipping malformed performance record",
				zap.String("district", districtCode), zap.Error(err))
			continue
		}
		month := int(parseInt(rec.Month))
		if month < 1 || month > 12 {
			continue
		}
		records = append(records, model.PerformanceRecord{
			DistrictCode:    districtCode,
			Month:           month,
			Year:            year,
			Households:      parseInt(rec.Households),
			Persons:         parseInt(rec.Persons),
			WorkDays:        parseInt(rec.WorkDays),
			WagesPaid:       parseFloat(rec.WagesPaid),
			MaterialCost:    parseFloat(rec.MaterialCost),
			Expenditure:     parseFloat(rec.Expenditure),
			WorksCompleted:  parseInt(rec.WorksCompleted),
			WorksOngoing:    parseInt(rec.WorksOngoing),
			WorksSanctioned: parseInt(rec.WorksSanctioned),
			Source:          model.SourceAPI,
		})
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, resource string, params url.Values) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "datagov: rate limit wait")
	}

	params.Set("api-key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+resource+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "datagov: build request %s", resource)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "datagov: request %s", resource)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, eris.Errorf("datagov: %s returned status %d", resource, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, eris.Wrapf(err, "datagov: decode %s response", resource)
	}
	return &env, nil
}

// synthesizeCode builds a district code when the provider record carries none.
// The provider-internal id is preferred; the record position is the last resort.
func synthesizeCode(stateCode, providerID string, index int) string {
	if providerID != "" {
		return fmt.Sprintf("%s-%s", stateCode, providerID)
	}
	return fmt.Sprintf("%s%03d", stateCode, index+1)
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		// data.gov.in sometimes reports integers with decimal points
		if f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
