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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/ycharts/ycharts"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(dir, content string) error {
	return os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644)
}

const infoJSON = `{"meta": {"status": "ok"}, "response": {"AAPL": {"meta": {"status": "ok"},
 "results": {"exchange": {"meta": {"status": "ok"}, "data": "NASDAQ"}}}}}`

const seriesJSON = `{"meta": {"status": "ok"}, "response": {"AAPL": {"meta": {"status": "ok"},
 "results": {"price": {"meta": {"status": "ok"},
  "data": [["2016-03-03T00:00:00", 101.5], ["2016-03-04T00:00:00", 103.01]]}}}}}`

func TestApp(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_ycharts")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		Convey("info", func() {
			flags, err := parseFlags([]string{
				"-config", "path/to/config", "-log-level", "warning", "-format", "csv",
				"info", "-companies", "AAPL,MSFT", "-fields", "exchange,industry"})
			So(err, ShouldBeNil)
			So(flags.ConfigDir, ShouldEqual, "path/to/config")
			So(flags.LogLevel, ShouldEqual, logging.Warning)
			So(flags.Format, ShouldEqual, "csv")
			So(flags.Parallel, ShouldEqual, 4)
			So(flags.Command, ShouldEqual, "info")
			So(flags.Query.String(), ShouldEqual,
				"companies/AAPL,MSFT/info/exchange,industry")
		})

		Convey("point", func() {
			flags, err := parseFlags([]string{
				"point", "-companies", "AAPL", "-metrics", "price", "-date", "2016-03-03"})
			So(err, ShouldBeNil)
			So(flags.Format, ShouldEqual, "json")
			So(flags.Query.String(), ShouldEqual,
				"companies/AAPL/points/price?date=2016-03-03")
		})

		Convey("series", func() {
			flags, err := parseFlags([]string{
				"-dry-run", "series", "-companies", "AAPL", "-metrics", "price",
				"-end", "2016-03-15"})
			So(err, ShouldBeNil)
			So(flags.DryRun, ShouldBeTrue)
			So(flags.Query.String(), ShouldEqual,
				"companies/AAPL/series/price?end_date=2016-03-15")
		})

		Convey("batch", func() {
			flags, err := parseFlags([]string{"-parallel", "2", "batch"})
			So(err, ShouldBeNil)
			So(flags.Command, ShouldEqual, "batch")
			So(flags.Parallel, ShouldEqual, 2)
			So(flags.Query, ShouldBeNil)
		})

		Convey("errors", func() {
			_, err := parseFlags([]string{})
			So(err, ShouldNotBeNil)

			_, err = parseFlags([]string{"quote", "-companies", "AAPL"})
			So(err, ShouldNotBeNil)

			_, err = parseFlags([]string{"info", "-fields", "exchange"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "-companies")

			_, err = parseFlags([]string{"point", "-companies", "AAPL"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "-metrics")

			_, err = parseFlags([]string{"info", "-companies", "AAPL,", "-fields", "name"})
			So(err, ShouldNotBeNil)

			_, err = parseFlags([]string{"-format", "xml", "batch"})
			So(err, ShouldNotBeNil)

			_, err = parseFlags([]string{"batch", "extra"})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("parseConfig", t, func() {
		Convey("full config", func() {
			So(writeConfig(tmpdir, `key = "testKey"

[[queries]]
kind = "info"
companies = ["AAPL", "MSFT"]
fields = ["exchange"]

[[queries]]
kind = "series"
companies = ["AAPL"]
metrics = ["price"]
start_date = "2016-03-03"
`), ShouldBeNil)
			c, err := parseConfig(tmpdir)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, &Config{
				Key: "testKey",
				Queries: []QueryConfig{
					{Kind: "info", Companies: []string{"AAPL", "MSFT"}, Fields: []string{"exchange"}},
					{Kind: "series", Companies: []string{"AAPL"}, Metrics: []string{"price"},
						StartDate: "2016-03-03"},
				},
			})
		})

		Convey("missing key", func() {
			So(writeConfig(tmpdir, `queries = []`), ShouldBeNil)
			_, err := parseConfig(tmpdir)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "missing API key")
		})

		Convey("unknown field", func() {
			So(writeConfig(tmpdir, "key = \"k\"\ntables = [\"SEP\"]\n"), ShouldBeNil)
			_, err := parseConfig(tmpdir)
			So(err, ShouldNotBeNil)
		})

		Convey("missing file", func() {
			_, err := parseConfig(filepath.Join(tmpdir, "nonexistent"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "does not exist")
			So(err.Error(), ShouldContainSubstring, "YourSecretYChartsKey")
		})
	})

	Convey("QueryConfig.Query", t, func() {
		q, err := (&QueryConfig{Kind: "point", Companies: []string{"AAPL"},
			Metrics: []string{"price"}, Date: "2016-03-03"}).Query()
		So(err, ShouldBeNil)
		So(q.String(), ShouldEqual, "companies/AAPL/points/price?date=2016-03-03")

		q, err = (&QueryConfig{Kind: "Series", Companies: []string{"AAPL", "MSFT"},
			Metrics: []string{"price"}, StartDate: "2016-03-03", EndDate: "2016-03-15"}).Query()
		So(err, ShouldBeNil)
		So(q.String(), ShouldEqual,
			"companies/AAPL,MSFT/series/price?start_date=2016-03-03&end_date=2016-03-15")

		_, err = (&QueryConfig{Kind: "info", Companies: []string{"AAPL"},
			Fields: []string{"exchange"}, Date: "2016-03-03"}).Query()
		So(err, ShouldNotBeNil)

		_, err = (&QueryConfig{Kind: "quote"}).Query()
		So(err, ShouldNotBeNil)
	})

	Convey("run", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(ycharts.AuthHeader) != "testKey" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			switch r.URL.Path {
			case "/api/v3/companies/AAPL/info/exchange":
				w.Write([]byte(infoJSON))
			case "/api/v3/companies/AAPL/series/price":
				w.Write([]byte(seriesJSON))
			default:
				w.Write([]byte("<html>not json</html>"))
			}
		}))
		defer srv.Close()

		ctx := fetch.UseClient(context.Background(), srv.Client())
		oldURL := ycharts.URL
		defer func() { ycharts.URL = oldURL }()
		ycharts.URL = srv.URL + "/api/v3"

		Convey("dry run needs no config", func() {
			flags, err := parseFlags([]string{"-config", filepath.Join(tmpdir, "none"),
				"-dry-run", "series", "-companies", "AAPL,MSFT", "-metrics", "price",
				"-start", "2016-03-03", "-end", "2016-03-15"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldBeNil)
			So(buf.String(), ShouldEqual, srv.URL+
				"/api/v3/companies/AAPL,MSFT/series/price?start_date=2016-03-03&end_date=2016-03-15\n")
		})

		Convey("info as text", func() {
			So(writeConfig(tmpdir, `key = "testKey"`), ShouldBeNil)
			flags, err := parseFlags([]string{"-config", tmpdir, "-format", "text",
				"info", "-companies", "AAPL", "-fields", "exchange"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
Symbol |    Field | Date |  Value | Status
------ | -------- | ---- | ------ | ------
  AAPL | exchange |      | NASDAQ |     ok
`)
		})

		Convey("series as JSON", func() {
			So(writeConfig(tmpdir, `key = "testKey"`), ShouldBeNil)
			flags, err := parseFlags([]string{"-config", tmpdir,
				"series", "-companies", "AAPL", "-metrics", "price"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldBeNil)
			var got, expected interface{}
			So(json.Unmarshal(buf.Bytes(), &got), ShouldBeNil)
			So(json.Unmarshal([]byte(seriesJSON), &expected), ShouldBeNil)
			So(got, ShouldResemble, expected)
		})

		Convey("failed query", func() {
			So(writeConfig(tmpdir, `key = "testKey"`), ShouldBeNil)
			flags, err := parseFlags([]string{"-config", tmpdir,
				"point", "-companies", "MSFT", "-metrics", "price"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldNotBeNil)
			So(buf.String(), ShouldEqual, "")
		})

		Convey("batch", func() {
			So(writeConfig(tmpdir, `key = "testKey"

[[queries]]
kind = "series"
companies = ["AAPL"]
metrics = ["price"]

[[queries]]
kind = "info"
companies = ["AAPL"]
fields = ["exchange"]
`), ShouldBeNil)

			Convey("as CSV", func() {
				flags, err := parseFlags([]string{"-config", tmpdir, "-format", "csv", "batch"})
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				So(run(ctx, flags, &buf), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
Symbol,Field,Date,Value,Status
AAPL,price,2016-03-03,101.5,ok
AAPL,price,2016-03-04,103.01,ok
AAPL,exchange,,NASDAQ,ok
`)
			})

			Convey("as JSON", func() {
				flags, err := parseFlags([]string{"-config", tmpdir, "batch"})
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				So(run(ctx, flags, &buf), ShouldBeNil)
				var got []jsonResult
				So(json.Unmarshal(buf.Bytes(), &got), ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[0].Query, ShouldEqual, "companies/AAPL/series/price")
				So(got[1].Query, ShouldEqual, "companies/AAPL/info/exchange")
				So(got[0].Error, ShouldEqual, "")
				So(got[1].Response, ShouldNotBeNil)
			})

			Convey("with a failed query", func() {
				So(writeConfig(tmpdir, `key = "testKey"

[[queries]]
kind = "info"
companies = ["AAPL"]
fields = ["exchange"]

[[queries]]
kind = "info"
companies = ["MSFT"]
fields = ["exchange"]
`), ShouldBeNil)
				flags, err := parseFlags([]string{"-config", tmpdir, "-format", "csv", "batch"})
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				err = run(ctx, flags, &buf)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "1 of 2 queries failed")
				So("\n"+buf.String(), ShouldEqual, `
Symbol,Field,Date,Value,Status
AAPL,exchange,,NASDAQ,ok
`)
			})
		})
	})
}
