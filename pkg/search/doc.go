// Package search turns request parameters into backend search requests and
// backend responses into paged results.
//
// # Overview
//
// The results plugin hands request parameters to ParseParams, runs the
// resulting Params through a Service and renders the Results. Paging is
// 1-based; the total number of pages is derived from the backend's hit
// count so no lookahead request is needed.
//
// # Usage
//
//	params, err := search.ParseParams(r.URL.Query(), 10)
//	if err != nil {
//		// invalid date
//	}
//	params.Query = "apache solr"
//	results, err := search.NewService().Search(ctx, backendSearch, params)
//
// # Parameters
//
//   - page: page number (positive integer, defaults to 1)
//   - limit: results per page (defaults to the configured value, at most MaxLimit)
//   - fq: filter query, may be repeated
//   - sort: sort clause, e.g. "created desc"
//   - start_date, end_date: YYYY-MM-DD bounds on the date field
//
// The query itself is not read here; it comes from the request's captured
// query so that "no query" and "blank query" stay distinguishable.
package search
