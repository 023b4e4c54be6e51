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
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/ycharts/report"
	"github.com/stockparfait/ycharts/ycharts"
)

const usage = `Usage: ycharts [flags] <command> [command flags]

Commands:
  info   -companies AAPL,MSFT -fields exchange,industry
  point  -companies AAPL -metrics price,pe_ratio [-date 2016-03-03]
  series -companies AAPL -metrics price [-start 2016-03-03] [-end 2016-03-15]
  batch  run all [[queries]] from the config file

Flags:
`

// Flags are the command line flags of the tool.
type Flags struct {
	ConfigDir string // default: ~/.ycharts
	LogLevel  logging.Level
	Format    string // json, text or csv
	DryRun    bool   // print request URLs without fetching
	Parallel  int    // number of concurrent batch queries
	Command   string
	Query     *ycharts.Query // nil for batch
}

// list splits a comma-separated flag value.
func list(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseCommand(command string, args []string) (*ycharts.Query, error) {
	var companies, fields, metrics, date, start, end string
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.StringVar(&companies, "companies", "", "comma-separated company symbols (required)")
	switch command {
	case "info":
		fs.StringVar(&fields, "fields", "", "comma-separated info fields (required)")
	case "point":
		fs.StringVar(&metrics, "metrics", "", "comma-separated metrics (required)")
		fs.StringVar(&date, "date", "", "date YYYY-MM-DD; default: current")
	case "series":
		fs.StringVar(&metrics, "metrics", "", "comma-separated metrics (required)")
		fs.StringVar(&start, "start", "", "start date YYYY-MM-DD")
		fs.StringVar(&end, "end", "", "end date YYYY-MM-DD")
	default:
		return nil, errors.Reason("unknown command: '%s'", command)
	}
	if err := fs.Parse(args); err != nil {
		return nil, errors.Annotate(err, "failed to parse %s flags", command)
	}
	if fs.NArg() > 0 {
		return nil, errors.Reason("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if companies == "" {
		return nil, errors.Reason("missing required -companies argument")
	}
	var q *ycharts.Query
	switch command {
	case "info":
		if fields == "" {
			return nil, errors.Reason("missing required -fields argument")
		}
		q = ycharts.NewInfoQuery(list(companies), list(fields))
	case "point":
		if metrics == "" {
			return nil, errors.Reason("missing required -metrics argument")
		}
		q = ycharts.NewPointQuery(list(companies), list(metrics)).Date(date)
	case "series":
		if metrics == "" {
			return nil, errors.Reason("missing required -metrics argument")
		}
		q = ycharts.NewSeriesQuery(list(companies), list(metrics)).StartDate(start).EndDate(end)
	}
	if _, err := q.Path(); err != nil {
		return nil, errors.Annotate(err, "invalid %s query", command)
	}
	return q, nil
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("ycharts", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&flags.ConfigDir, "config",
		filepath.Join(os.Getenv("HOME"), ".ycharts"),
		"configuration path")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Format, "format", "json", "output format: json, text, csv")
	fs.BoolVar(&flags.DryRun, "dry-run", false, "print request URLs without fetching")
	fs.IntVar(&flags.Parallel, "parallel", 4, "number of concurrent batch queries")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch flags.Format {
	case "json", "text", "csv":
	default:
		return nil, errors.Reason("unsupported -format: '%s'", flags.Format)
	}
	if flags.Parallel < 1 {
		return nil, errors.Reason("-parallel must be >= 1, got %d", flags.Parallel)
	}
	if fs.NArg() == 0 {
		return nil, errors.Reason("missing command: info, point, series or batch")
	}
	flags.Command = fs.Arg(0)
	if flags.Command == "batch" {
		if fs.NArg() > 1 {
			return nil, errors.Reason("batch takes no arguments")
		}
		return &flags, nil
	}
	q, err := parseCommand(flags.Command, fs.Args()[1:])
	if err != nil {
		return nil, err
	}
	flags.Query = q
	return &flags, nil
}

// result of a single query.
type result struct {
	Index int
	Query *ycharts.Query
	Value ycharts.Value
	Err   error
}

func fetchAll(ctx context.Context, parallel int, queries []*ycharts.Query) []result {
	client := ycharts.GetClient(ctx)
	indices := make([]int, len(queries))
	for i := range indices {
		indices[i] = i
	}
	f := func(i int) result {
		q := queries[i]
		logging.Infof(ctx, "fetching %s", q)
		v, err := client.Fetch(ctx, q)
		if err != nil {
			logging.Warningf(ctx, "query %d failed: %s", i, err.Error())
		}
		return result{Index: i, Query: q, Value: v, Err: err}
	}
	pm := iterator.ParallelMap(ctx, parallel, iterator.FromSlice(indices), f)
	defer pm.Close()

	results := iterator.Reduce[result, []result](pm, []result{}, func(r result, rs []result) []result {
		return append(rs, r)
	})
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

type jsonResult struct {
	Query    string        `json:"query"`
	Response ycharts.Value `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func writeJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Annotate(err, "failed to encode JSON")
	}
	if _, err := fmt.Fprintln(w, string(b)); err != nil {
		return errors.Annotate(err, "failed to write JSON")
	}
	return nil
}

func writeTable(w io.Writer, format string, tbl *report.Table) error {
	if format == "csv" {
		if err := tbl.WriteCSV(w, report.Params{}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, report.Params{}); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func printResults(w io.Writer, flags *Flags, results []result) error {
	if flags.Format == "json" {
		if flags.Command != "batch" {
			return writeJSON(w, results[0].Value)
		}
		js := make([]jsonResult, len(results))
		for i, r := range results {
			js[i] = jsonResult{Query: r.Query.String(), Response: r.Value}
			if r.Err != nil {
				js[i].Error = r.Err.Error()
			}
		}
		return writeJSON(w, js)
	}
	tbl := report.NewTable(report.RowHeader()...)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		rows, err := report.Rows(r.Query.Kind(), r.Value)
		if err != nil {
			return errors.Annotate(err, "failed to parse response for %s", r.Query)
		}
		for _, row := range rows {
			tbl.AddRow(row)
		}
	}
	return writeTable(w, flags.Format, tbl)
}

func run(ctx context.Context, flags *Flags, w io.Writer) error {
	var queries []*ycharts.Query
	var key string
	if flags.Command == "batch" || !flags.DryRun {
		config, err := parseConfig(flags.ConfigDir)
		if err != nil {
			return errors.Annotate(err, "failed to parse config")
		}
		key = config.Key
		if flags.Command == "batch" {
			for i, qc := range config.Queries {
				q, err := qc.Query()
				if err != nil {
					return errors.Annotate(err, "invalid query %d in config", i)
				}
				queries = append(queries, q)
			}
			if len(queries) == 0 {
				return errors.Reason("no queries in config")
			}
		}
	}
	if flags.Query != nil {
		queries = []*ycharts.Query{flags.Query}
	}
	ctx = ycharts.UseClient(ctx, key)

	if flags.DryRun {
		client := ycharts.GetClient(ctx)
		for _, q := range queries {
			u, err := client.URL(q)
			if err != nil {
				return errors.Annotate(err, "invalid query")
			}
			if _, err := fmt.Fprintln(w, u); err != nil {
				return errors.Annotate(err, "failed to write URL")
			}
		}
		return nil
	}

	results := fetchAll(ctx, flags.Parallel, queries)
	if flags.Command != "batch" && results[0].Err != nil {
		return errors.Annotate(results[0].Err, "%s query failed", flags.Command)
	}
	if err := printResults(w, flags, results); err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return errors.Reason("%d of %d queries failed", failed, len(results))
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := run(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, "%s", err.Error())
		os.Exit(1)
	}
}
