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

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/ycharts/ycharts"

	toml "github.com/pelletier/go-toml/v2"
)

// QueryConfig is a single query in the batch section of the config file.
type QueryConfig struct {
	Kind      string   `toml:"kind"` // info, point or series
	Companies []string `toml:"companies"`
	Fields    []string `toml:"fields"`  // for info
	Metrics   []string `toml:"metrics"` // for point and series
	Date      string   `toml:"date"`
	StartDate string   `toml:"start_date"`
	EndDate   string   `toml:"end_date"`
}

// Query converts the config into a ycharts query.
func (c *QueryConfig) Query() (*ycharts.Query, error) {
	switch strings.ToLower(c.Kind) {
	case "info":
		if len(c.Metrics) > 0 || c.Date != "" || c.StartDate != "" || c.EndDate != "" {
			return nil, errors.Reason("info query accepts only companies and fields")
		}
		return ycharts.NewInfoQuery(c.Companies, c.Fields), nil
	case "point", "points":
		if len(c.Fields) > 0 || c.StartDate != "" || c.EndDate != "" {
			return nil, errors.Reason("point query accepts only companies, metrics and date")
		}
		return ycharts.NewPointQuery(c.Companies, c.Metrics).Date(c.Date), nil
	case "series":
		if len(c.Fields) > 0 || c.Date != "" {
			return nil, errors.Reason(
				"series query accepts only companies, metrics, start_date and end_date")
		}
		q := ycharts.NewSeriesQuery(c.Companies, c.Metrics)
		return q.StartDate(c.StartDate).EndDate(c.EndDate), nil
	}
	return nil, errors.Reason("unknown query kind: '%s'", c.Kind)
}

// Config is the content of config.toml.
type Config struct {
	Key     string        `toml:"key"` // YCharts API key
	Queries []QueryConfig `toml:"queries"`
}

const sampleConfig = `key = "YourSecretYChartsKey"

# Optional queries for the batch command.
[[queries]]
kind = "info"
companies = ["AAPL", "MSFT"]
fields = ["exchange", "industry"]

[[queries]]
kind = "series"
companies = ["AAPL"]
metrics = ["price"]
start_date = "2016-03-03"
end_date = "2016-03-15"
`

func parseConfig(dir string) (*Config, error) {
	filePath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Annotate(err,
				"config file '%s' does not exist.\nPlease create config file containing:\n%s",
				filePath, sampleConfig)
		}
		return nil, errors.Annotate(err,
			"cannot check config file for existence: '%s'", filePath)
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	d.DisallowUnknownFields()
	var c Config
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	if c.Key == "" {
		return nil, errors.Reason("missing API key in config file %s", filePath)
	}
	return &c, nil
}
