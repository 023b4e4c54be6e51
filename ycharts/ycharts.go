// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ycharts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default base URL of the server. It may be overwritten in tests
// before creating a new client.
var URL = "https://ycharts.com/api/v3"

// Request headers sent with every query.
const (
	AuthHeader  = "X-YCHARTSAUTHORIZATION"
	ContentType = "application/json; charset: UTF-8"
)

// Value is an arbitrary decoded JSON value: map[string]interface{},
// []interface{}, string, float64, bool or nil.
type Value interface{}

// Client for querying the companies API.
type Client struct {
	baseURL string // the base URL of the server
	apiKey  string // your very own secret key
}

// NewClient creates a new client for the default URL. It does not access the
// network.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: URL,
		apiKey:  apiKey,
	}
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client based on the API key and injects it into the
// context.
func UseClient(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, clientContextKey, NewClient(apiKey))
}

// CompanyInfo fetches info fields (e.g. "exchange", "industry") for the
// companies.
func (c *Client) CompanyInfo(ctx context.Context, companies, infoFields []string) (Value, error) {
	return c.Fetch(ctx, NewInfoQuery(companies, infoFields))
}

// CompanyDataPoint fetches a single data point of each metric for the
// companies. An empty date requests the current data point.
func (c *Client) CompanyDataPoint(ctx context.Context, companies, metrics []string, date string) (Value, error) {
	return c.Fetch(ctx, NewPointQuery(companies, metrics).Date(date))
}

// CompanyDataTimeseries fetches the time series of each metric for the
// companies. Either date may be empty, leaving the bound to the server.
func (c *Client) CompanyDataTimeseries(ctx context.Context, companies, metrics []string, startDate, endDate string) (Value, error) {
	q := NewSeriesQuery(companies, metrics).StartDate(startDate).EndDate(endDate)
	return c.Fetch(ctx, q)
}

// Fetch executes an arbitrary query.
func (c *Client) Fetch(ctx context.Context, q *Query) (Value, error) {
	uri, err := c.URL(q)
	if err != nil {
		return nil, err
	}
	return c.getData(ctx, uri)
}

// URL returns the full request URL of the query for this client.
func (c *Client) URL(q *Query) (string, error) {
	path, err := q.Path()
	if err != nil {
		return "", errors.Annotate(err, "invalid %s query", q.kind)
	}
	uri := c.baseURL + "/" + path
	if raw := q.RawQuery(); raw != "" {
		uri += "?" + raw
	}
	return uri, nil
}

// getData performs a single GET request with the API headers and decodes the
// JSON body. The HTTP client comes from the context, see fetch.UseClient.
func (c *Client) getData(ctx context.Context, uri string) (Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create request for %s", uri)
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set(AuthHeader, c.apiKey)

	logging.Debugf(ctx, "YCharts: GET %s", uri)
	client := fetch.GetClient(ctx)
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch %s", uri)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read response body from %s", uri)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Reason("%s: response code %d %s",
			uri, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	var res Value
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errors.Annotate(err, "failed to decode JSON from %s", uri)
	}
	return res, nil
}

// Kind of a query, which is also its URL path element.
type Kind string

// Values of Kind.
const (
	KindInfo   = Kind("info")
	KindPoints = Kind("points")
	KindSeries = Kind("series")
)

// queryParam is a single query string parameter. The order of parameters is
// preserved in RawQuery.
type queryParam struct {
	Key   string
	Value string
}

// Query is a builder for a companies query.
type Query struct {
	kind      Kind
	companies []string
	fields    []string
	params    []queryParam
}

func newQuery(kind Kind, companies, fields []string) *Query {
	q := Query{kind: kind}
	q.companies = append([]string{}, companies...)
	q.fields = append([]string{}, fields...)
	return &q
}

// NewInfoQuery creates a query for company info fields.
func NewInfoQuery(companies, infoFields []string) *Query {
	return newQuery(KindInfo, companies, infoFields)
}

// NewPointQuery creates a query for a single data point of each metric.
func NewPointQuery(companies, metrics []string) *Query {
	return newQuery(KindPoints, companies, metrics)
}

// NewSeriesQuery creates a query for a time series of each metric.
func NewSeriesQuery(companies, metrics []string) *Query {
	return newQuery(KindSeries, companies, metrics)
}

// Copy creates a deep copy of the query. It is primarily used in its builder
// methods.
func (q *Query) Copy() *Query {
	q2 := newQuery(q.kind, q.companies, q.fields)
	q2.params = append([]queryParam{}, q.params...)
	return q2
}

// Kind of the query.
func (q *Query) Kind() Kind { return q.kind }

// set replaces a parameter, moving it to the end. An empty value removes it.
func (q *Query) set(key, value string) *Query {
	q2 := q.Copy()
	q2.params = nil
	for _, p := range q.params {
		if p.Key != key {
			q2.params = append(q2.params, p)
		}
	}
	if value != "" {
		q2.params = append(q2.params, queryParam{key, value})
	}
	return q2
}

// Date sets the date of a data point, YYYY-MM-DD. Empty date means the current
// data point. This and other builder methods always create a deep copy of the
// query, leaving the original intact.
func (q *Query) Date(date string) *Query {
	return q.set("date", date)
}

// StartDate sets the first date of a time series, YYYY-MM-DD.
func (q *Query) StartDate(date string) *Query {
	return q.set("start_date", date)
}

// EndDate sets the last date of a time series, YYYY-MM-DD.
func (q *Query) EndDate(date string) *Query {
	return q.set("end_date", date)
}

// joinPath escapes and comma-joins a non-empty list of path elements.
func joinPath(what string, elements []string) (string, error) {
	if len(elements) == 0 {
		return "", errors.Reason("no %s", what)
	}
	escaped := make([]string, len(elements))
	for i, e := range elements {
		if e == "" {
			return "", errors.Reason("empty %s at index %d", what, i)
		}
		escaped[i] = url.PathEscape(e)
	}
	return strings.Join(escaped, ","), nil
}

// Path returns the URL path to add to the base URL, e.g.
// companies/AAPL,MSFT/info/exchange,industry.
func (q *Query) Path() (string, error) {
	companies, err := joinPath("companies", q.companies)
	if err != nil {
		return "", err
	}
	fields, err := joinPath("fields", q.fields)
	if err != nil {
		return "", err
	}
	return "companies/" + companies + "/" + string(q.kind) + "/" + fields, nil
}

// RawQuery returns the encoded query string in the order the parameters were
// set, without the leading '?'. It is empty when no parameters are set.
func (q *Query) RawQuery() string {
	parts := make([]string, len(q.params))
	for i, p := range q.params {
		parts[i] = url.QueryEscape(p.Key) + "=" + url.QueryEscape(p.Value)
	}
	return strings.Join(parts, "&")
}

// String representation of the query: its path and the query string, if any.
// An invalid query prints as its kind with the error.
func (q *Query) String() string {
	path, err := q.Path()
	if err != nil {
		return string(q.kind) + ": " + err.Error()
	}
	if raw := q.RawQuery(); raw != "" {
		return path + "?" + raw
	}
	return path
}
