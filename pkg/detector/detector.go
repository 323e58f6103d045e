// Package detector collects the validation errors shown with search results.
//
// Errors come from a built-in empty query check followed by pluggable
// detectors registered at startup. Entries keep detection order.
package detector

import (
	"context"
	"fmt"

	"github.com/rubiojr/solrpi/pkg/errors"
	"github.com/rubiojr/solrpi/pkg/query"
)

// EmptyQueryMessage is the label token of the built-in empty query error.
const EmptyQueryMessage = "###LLL:error_emptyQuery###"

// Entry is one error shown to the user. Message may carry an unresolved
// label token.
type Entry struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Detector contributes additional errors.
type Detector interface {
	Errors(ctx context.Context) ([]Entry, error)
}

// PluginAware detectors receive the requesting plugin before they run.
type PluginAware interface {
	SetParentPlugin(parent any)
}

// Options controls the built-in checks.
type Options struct {
	AllowEmptyQuery bool
}

// Collect returns the errors for q. Detectors run in order; a value that is
// not a Detector, or a detector that fails, aborts collection with a
// contract error and no entries.
//
// The result is never nil: no errors is an empty slice.
func Collect(ctx context.Context, q query.Query, opts Options, detectors []any, parent any) ([]Entry, error) {
	entries := make([]Entry, 0)

	if !q.IsNull() && !opts.AllowEmptyQuery && q.IsEmptyString() {
		entries = append(entries, Entry{
			Message: EmptyQueryMessage,
			Code:    errors.CodeEmptyQuery,
		})
	}

	for _, value := range detectors {
		d, ok := value.(Detector)
		if !ok {
			return nil, errors.Contract(errors.CodeDetectorCapability,
				fmt.Sprintf("error detector %T must implement detector.Detector", value))
		}
		if aware, ok := d.(PluginAware); ok {
			aware.SetParentPlugin(parent)
		}

		found, err := d.Errors(ctx)
		if err != nil {
			return nil, errors.New(errors.KindContract, errors.CodeDetectorResult,
				fmt.Sprintf("error detector %T must return a list of errors", d), err)
		}
		entries = append(entries, found...)
	}

	return entries, nil
}

// Func adapts a function to a Detector.
type Func func(ctx context.Context) ([]Entry, error)

// Errors calls f.
func (f Func) Errors(ctx context.Context) ([]Entry, error) {
	return f(ctx)
}
