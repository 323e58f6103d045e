// Package wrap implements declarative content transforms configured in
// settings, used for std_wrap post processing and the outer base wrap.
package wrap

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/solrpi/pkg/config"
	"github.com/rubiojr/solrpi/pkg/errors"
)

// Spec is a content transform. Steps run in field order; the zero Spec
// returns content unchanged.
//
//	[plugins.results.std_wrap]
//	if = "len(content) > 0"
//	trim = true
//	case = "upper"
//	wrap = "<section>|</section>"
type Spec struct {
	// If is an expression evaluated with "content" bound to the current
	// content. When it evaluates to false the result is empty.
	If string `mapstructure:"if"`
	// Required empties the result when the content is empty.
	Required bool `mapstructure:"required"`
	Trim     bool `mapstructure:"trim"`
	// HTMLSpecialChars escapes HTML special characters.
	HTMLSpecialChars bool `mapstructure:"htmlspecialchars"`
	// Case is one of upper, lower or title.
	Case string `mapstructure:"case"`
	// Lang is the BCP 47 tag used for case mapping.
	Lang      string `mapstructure:"lang"`
	InnerWrap string `mapstructure:"inner_wrap"`
	Wrap      string `mapstructure:"wrap"`
	OuterWrap string `mapstructure:"outer_wrap"`
}

// FromSettings decodes the wrap Spec stored at path. It returns nil when path is
// not set.
func FromSettings(s config.Settings, path string) (*Spec, error) {
	if !s.Has(path) {
		return nil, nil
	}
	var spec Spec
	if err := s.Decode(path, &spec); err != nil {
		return nil, errors.Config(fmt.Sprintf("invalid %s", path), err)
	}
	return &spec, nil
}

var programs sync.Map // expression source -> *vm.Program

// Apply runs the transform over content.
func (s *Spec) Apply(content string) (string, error) {
	if s == nil {
		return content, nil
	}

	if s.If != "" {
		ok, err := evaluate(s.If, content)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
	}
	if s.Required && content == "" {
		return "", nil
	}
	if s.Trim {
		content = strings.TrimSpace(content)
	}
	if s.HTMLSpecialChars {
		content = html.EscapeString(content)
	}
	if s.Case != "" {
		c, err := s.caser()
		if err != nil {
			return "", err
		}
		content = c.String(content)
	}
	content = Wrap(content, s.InnerWrap)
	content = Wrap(content, s.Wrap)
	content = Wrap(content, s.OuterWrap)
	return content, nil
}

// Wrap splits wrap on the first "|" and puts content between both halves.
// A wrap without "|" is used as prefix.
func Wrap(content, wrap string) string {
	if wrap == "" {
		return content
	}
	before, after, _ := strings.Cut(wrap, "|")
	return strings.TrimSpace(before) + content + strings.TrimSpace(after)
}

func (s *Spec) caser() (cases.Caser, error) {
	tag := language.Und
	if s.Lang != "" {
		parsed, err := language.Parse(s.Lang)
		if err != nil {
			return cases.Caser{}, errors.Config(fmt.Sprintf("invalid case language %q", s.Lang), err)
		}
		tag = parsed
	}
	switch strings.ToLower(s.Case) {
	case "upper":
		return cases.Upper(tag), nil
	case "lower":
		return cases.Lower(tag), nil
	case "title":
		return cases.Title(tag), nil
	}
	return cases.Caser{}, errors.Config(fmt.Sprintf("unknown case %q", s.Case), nil)
}

func evaluate(source, content string) (bool, error) {
	env := map[string]any{"content": content}

	var program *vm.Program
	if cached, ok := programs.Load(source); ok {
		program = cached.(*vm.Program)
	} else {
		compiled, err := expr.Compile(source, expr.Env(env), expr.AsBool())
		if err != nil {
			return false, errors.Config(fmt.Sprintf("compiling wrap condition %q", source), err)
		}
		programs.Store(source, compiled)
		program = compiled
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, errors.Config(fmt.Sprintf("evaluating wrap condition %q", source), err)
	}
	return out.(bool), nil
}
