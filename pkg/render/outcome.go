// Package render turns a plugin's action result, or the reason there is
// none, into output.
//
// Exactly one of three subparts is rendered per request: the plugin's own
// subpart for a normal outcome, solr_search_unavailable when the backend did
// not answer its ping and solr_search_error when the request failed. The
// rendered content is then post processed (std_wrap) and wrapped in the
// base wrap.
package render

import (
	"fmt"
	"strings"

	tmpl "github.com/rubiojr/solrpi/pkg/template"
	"github.com/rubiojr/solrpi/pkg/wrap"
)

// DefaultBaseClass is the CSS class of the default base wrap.
const DefaultBaseClass = "tx-solr"

// Kind is the kind of a render outcome.
type Kind int

const (
	Normal Kind = iota
	Unavailable
	Exceptional
)

func (k Kind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Unavailable:
		return "unavailable"
	case Exceptional:
		return "exception"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the terminal state of a request. Result is only meaningful for
// Normal outcomes.
type Outcome struct {
	Kind   Kind
	Result any
}

func NormalOutcome(result any) Outcome { return Outcome{Kind: Normal, Result: result} }
func UnavailableOutcome() Outcome      { return Outcome{Kind: Unavailable} }
func ExceptionalOutcome() Outcome      { return Outcome{Kind: Exceptional} }

// Templater is the part of the template engine the renderer drives.
type Templater interface {
	WorkOnSubpart(name string)
	Render() (string, error)
}

// NormalFunc renders a normal outcome's result.
type NormalFunc func(result any) (string, error)

// ResultRenderer renders outcomes.
type ResultRenderer struct {
	engine Templater
	normal NormalFunc
}

// NewResultRenderer returns a renderer over engine. normal renders the
// plugin subpart.
func NewResultRenderer(engine Templater, normal NormalFunc) *ResultRenderer {
	return &ResultRenderer{engine: engine, normal: normal}
}

// Render renders o.
func (r *ResultRenderer) Render(o Outcome) (string, error) {
	switch o.Kind {
	case Normal:
		return r.RenderNormal(o.Result)
	case Unavailable:
		return r.RenderUnavailable()
	case Exceptional:
		return r.RenderException()
	}
	return "", fmt.Errorf("unknown outcome %s", o.Kind)
}

// RenderNormal renders the plugin subpart for result.
func (r *ResultRenderer) RenderNormal(result any) (string, error) {
	return r.normal(result)
}

// RenderUnavailable renders the backend unavailable subpart.
func (r *ResultRenderer) RenderUnavailable() (string, error) {
	r.engine.WorkOnSubpart(tmpl.SubpartUnavailable)
	return r.engine.Render()
}

// RenderException renders the exception subpart.
func (r *ResultRenderer) RenderException() (string, error) {
	r.engine.WorkOnSubpart(tmpl.SubpartError)
	return r.engine.Render()
}

// PostProcess applies the std_wrap spec when configured.
func PostProcess(content string, stdWrap *wrap.Spec) (string, error) {
	if stdWrap == nil {
		return content, nil
	}
	return stdWrap.Apply(content)
}

// BaseWrap applies the configured base wrap, or wraps content in a div with
// baseClass. Content already carrying the default wrap is returned as is.
func BaseWrap(content string, baseWrap *wrap.Spec, baseClass string) (string, error) {
	if baseWrap != nil {
		return baseWrap.Apply(content)
	}
	if baseClass == "" {
		baseClass = DefaultBaseClass
	}
	open := `<div class="` + baseClass + `">`
	if strings.HasPrefix(content, open) && strings.HasSuffix(content, "</div>") {
		return content, nil
	}
	return open + content + "</div>", nil
}
