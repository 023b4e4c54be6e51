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

// Package ycharts implements a client for the companies API of YCharts.
//
// Official documentation is at https://ycharts.com/api/docs/ .
//
// The API has three read-only queries over a list of company symbols:
//
//   - info: company metadata such as the exchange or the industry;
//   - points: a single data point per metric, optionally as of a date;
//   - series: a time series per metric between optional start and end dates.
//
// Symbols and field names are joined by commas into the URL path, e.g.
// companies/AAPL,MSFT/info/exchange,industry. Dates are passed as query
// parameters in the YYYY-MM-DD format and are not checked by the client.
//
// Responses are returned as generic decoded JSON values. Their structure is
// defined by the server; see the report package for turning them into tables.
package ycharts
