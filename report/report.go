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

// Package report converts YCharts responses into tables for printing.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/ycharts/ycharts"
)

// TableRow is the interface that a table row representation must implement.
type TableRow interface {
	CSV() []string // an encoding/csv compatible row representation
}

// Table container with optional column headers. When present, the number of
// headers is expected to match the number of cells in each row.
type Table struct {
	Header []string // optional, may be nil
	Rows   []TableRow
}

// NewTable creates a new Table instance with optional column headers.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...TableRow) {
	t.Rows = append(t.Rows, rows...)
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// lines returns the header (unless disabled) and the rows up to the limit, as
// lists of strings.
func (t *Table) lines(p Params) [][]string {
	var res [][]string
	if !p.NoHeader && len(t.Header) > 0 {
		res = append(res, t.Header)
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		res = append(res, r.CSV())
	}
	return res
}

// WriteCSV writes the table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.lines(p)); err != nil {
		return errors.Annotate(err, "failed to write CSV")
	}
	return nil
}

// WriteText writes the table as right-aligned columns separated by " | ", with
// a dashed line under the header. Cells wider than MaxColWidth are cut and end
// with "..".
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	lines := t.lines(p)
	if len(lines) == 0 {
		return nil
	}
	widths := make([]int, len(lines[0]))
	for i, l := range lines {
		if len(l) != len(widths) {
			return errors.Reason("line %d has %d cells, expected %d",
				i, len(l), len(widths))
		}
		for j, s := range l {
			n := len([]rune(s))
			if p.MaxColWidth > 0 && n > p.MaxColWidth {
				n = p.MaxColWidth
			}
			if n > widths[j] {
				widths[j] = n
			}
		}
	}

	write := func(l []string) error {
		cells := make([]string, len(l))
		for j, s := range l {
			if r := []rune(s); len(r) > widths[j] {
				s = string(r[:widths[j]-2]) + ".."
			}
			cells[j] = fmt.Sprintf("%*s", widths[j], s)
		}
		_, err := fmt.Fprintln(w, strings.Join(cells, " | "))
		return err
	}

	for i, l := range lines {
		if err := write(l); err != nil {
			return errors.Annotate(err, "failed to write line %d", i)
		}
		if i == 0 && !p.NoHeader && len(t.Header) > 0 {
			dashes := make([]string, len(widths))
			for j, n := range widths {
				dashes[j] = strings.Repeat("-", n)
			}
			if err := write(dashes); err != nil {
				return errors.Annotate(err, "failed to write header separator")
			}
		}
	}
	return nil
}

// Row is a single value of a field for a company. For failed fields or
// companies, Status holds the error reported by the server.
type Row struct {
	Symbol string
	Field  string
	Date   string // empty for info fields and failed rows
	Value  string
	Status string
}

var _ TableRow = Row{}

// RowHeader is the table header for Row.
func RowHeader() []string {
	return []string{"Symbol", "Field", "Date", "Value", "Status"}
}

// CSV implements TableRow.
func (r Row) CSV() []string {
	return []string{r.Symbol, r.Field, r.Date, r.Value, r.Status}
}

// StatusOK is the status of a successful result.
const StatusOK = "ok"

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// status extracts the status from the "meta" object of a response element.
// A missing meta is assumed to be ok. For errors, the server's message is
// appended when present.
func status(m map[string]interface{}) string {
	meta, ok := asMap(m["meta"])
	if !ok {
		return StatusOK
	}
	s, ok := meta["status"].(string)
	if !ok || s == "" {
		return StatusOK
	}
	if s == StatusOK {
		return s
	}
	for _, k := range []string{"error_message", "message", "error"} {
		if msg, ok := meta[k].(string); ok && msg != "" {
			return s + ": " + msg
		}
	}
	return s
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatValue prints a JSON value as a table cell. Numbers are printed in the
// shortest exact form, bools as TRUE/FALSE, null as an empty string, and
// arrays and objects as compact JSON.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// formatDate drops the zero time of day from a timestamp.
func formatDate(v interface{}) string {
	return strings.TrimSuffix(FormatValue(v), "T00:00:00")
}

// datePair parses a [date, value] element of a point or a series.
func datePair(v interface{}) (date, value string, err error) {
	pair, ok := v.([]interface{})
	if !ok || len(pair) != 2 {
		return "", "", errors.Reason("expected [date, value], got %s", FormatValue(v))
	}
	return formatDate(pair[0]), FormatValue(pair[1]), nil
}

// fieldRows converts the "data" of a single field result according to the
// query kind.
func fieldRows(kind ycharts.Kind, symbol, field string, data interface{}) ([]Row, error) {
	switch kind {
	case ycharts.KindInfo:
		return []Row{{Symbol: symbol, Field: field, Value: FormatValue(data), Status: StatusOK}}, nil
	case ycharts.KindPoints:
		if data == nil {
			return []Row{{Symbol: symbol, Field: field, Status: StatusOK}}, nil
		}
		date, value, err := datePair(data)
		if err != nil {
			return nil, err
		}
		return []Row{{Symbol: symbol, Field: field, Date: date, Value: value, Status: StatusOK}}, nil
	case ycharts.KindSeries:
		if data == nil {
			return nil, nil
		}
		points, ok := data.([]interface{})
		if !ok {
			return nil, errors.Reason("expected a list of [date, value], got %s",
				FormatValue(data))
		}
		rows := make([]Row, len(points))
		for i, p := range points {
			date, value, err := datePair(p)
			if err != nil {
				return nil, errors.Annotate(err, "point %d", i)
			}
			rows[i] = Row{Symbol: symbol, Field: field, Date: date, Value: value, Status: StatusOK}
		}
		return rows, nil
	}
	return nil, errors.Reason("unsupported query kind: %s", kind)
}

// Rows flattens a response of the given query kind into rows. The expected
// layout is:
//
//   {"meta": {...}, "response": {
//      SYMBOL: {"meta": {...}, "results": {
//         FIELD: {"meta": {...}, "data": DATA}}}}}
//
// where DATA is a value for info, [date, value] for points, and a list of
// [date, value] for series. Symbols and fields are sorted; series keep the
// order of the server.
func Rows(kind ycharts.Kind, v ycharts.Value) ([]Row, error) {
	top, ok := asMap(v)
	if !ok {
		return nil, errors.Reason("response is not a JSON object: %s", FormatValue(v))
	}
	if s := status(top); s != StatusOK {
		return nil, errors.Reason("request failed: %s", s)
	}
	resp, ok := asMap(top["response"])
	if !ok {
		return nil, errors.Reason("response has no 'response' object")
	}
	var rows []Row
	for _, symbol := range sortedKeys(resp) {
		company, ok := asMap(resp[symbol])
		if !ok {
			return nil, errors.Reason("%s: not a JSON object", symbol)
		}
		if s := status(company); s != StatusOK {
			rows = append(rows, Row{Symbol: symbol, Status: s})
			continue
		}
		results, ok := asMap(company["results"])
		if !ok {
			return nil, errors.Reason("%s: no 'results' object", symbol)
		}
		for _, field := range sortedKeys(results) {
			res, ok := asMap(results[field])
			if !ok {
				return nil, errors.Reason("%s/%s: not a JSON object", symbol, field)
			}
			if s := status(res); s != StatusOK {
				rows = append(rows, Row{Symbol: symbol, Field: field, Status: s})
				continue
			}
			fr, err := fieldRows(kind, symbol, field, res["data"])
			if err != nil {
				return nil, errors.Annotate(err, "%s/%s", symbol, field)
			}
			rows = append(rows, fr...)
		}
	}
	return rows, nil
}

// NewReport creates a table of the rows of a response.
func NewReport(kind ycharts.Kind, v ycharts.Value) (*Table, error) {
	rows, err := Rows(kind, v)
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse %s response", kind)
	}
	t := NewTable(RowHeader()...)
	for _, r := range rows {
		t.AddRow(r)
	}
	return t, nil
}
