package contract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/erraggy/oasgate/gateerrors"
)

// Matcher handles matching request paths against an OpenAPI path template.
// It converts templates like "/pets/{petId}" into regex patterns and
// extracts parameter values from concrete request paths.
type Matcher struct {
	// template is the original path template (e.g., "/pets/{petId}")
	template string

	// regex is the compiled pattern for matching
	regex *regexp.Regexp

	// paramNames are the parameter names in order of appearance
	paramNames []string

	// paramCount is the number of parameter segments; fewer parameters
	// means a more specific template
	paramCount int

	// shape encodes the template's structural segments for overlap checks:
	// literal segments keep their text, parameter segments become "*"
	shape []string
}

// NewMatcher creates a Matcher from an OpenAPI path template.
// The template must use single-segment "{name}" placeholders only.
//
// Returns an error if the template is malformed (e.g., unclosed braces).
func NewMatcher(template string) (*Matcher, error) {
	if template == "" || template[0] != '/' {
		return nil, fmt.Errorf("path template must begin with '/': %q", template)
	}

	var regexBuf strings.Builder
	regexBuf.WriteString("^")

	var paramNames []string
	segments := strings.Split(template[1:], "/")
	shape := make([]string, len(segments))

	for si, seg := range segments {
		regexBuf.WriteString("/")
		if strings.HasPrefix(seg, "{") {
			if !strings.HasSuffix(seg, "}") {
				return nil, fmt.Errorf("unclosed path parameter in segment %q of template %q", seg, template)
			}
			name := seg[1 : len(seg)-1]
			if name == "" {
				return nil, fmt.Errorf("empty path parameter in template %q", template)
			}
			for _, existing := range paramNames {
				if existing == name {
					return nil, fmt.Errorf("duplicate path parameter %q in template %q", name, template)
				}
			}
			paramNames = append(paramNames, name)
			shape[si] = "*"
			// Capture any non-slash characters; path segments are
			// separated by / per RFC 3986
			regexBuf.WriteString("([^/]+)")
			continue
		}
		if strings.ContainsAny(seg, "{}") {
			return nil, fmt.Errorf("partial path parameter in segment %q of template %q", seg, template)
		}
		shape[si] = seg
		regexBuf.WriteString(regexp.QuoteMeta(seg))
	}

	regexBuf.WriteString("$")

	regex, err := regexp.Compile(regexBuf.String())
	if err != nil {
		return nil, fmt.Errorf("failed to compile path pattern for template %q: %w", template, err)
	}

	return &Matcher{
		template:   template,
		regex:      regex,
		paramNames: paramNames,
		paramCount: len(paramNames),
		shape:      shape,
	}, nil
}

// Match checks if the given path matches this template and extracts parameters.
// Returns true and a map of parameter names to raw values if the path matches.
func (m *Matcher) Match(path string) (bool, map[string]string) {
	matches := m.regex.FindStringSubmatch(path)
	if matches == nil {
		return false, nil
	}
	if len(matches) != len(m.paramNames)+1 {
		return false, nil
	}

	params := make(map[string]string, len(m.paramNames))
	for i, name := range m.paramNames {
		params[name] = matches[i+1]
	}
	return true, params
}

// Template returns the original path template.
func (m *Matcher) Template() string {
	return m.template
}

// ParamNames returns the parameter names in order of appearance.
func (m *Matcher) ParamNames() []string {
	return m.paramNames
}

// overlaps reports whether two templates can structurally match the same
// concrete path: same segment count, and no position where both carry
// distinct literals.
func (m *Matcher) overlaps(other *Matcher) bool {
	if len(m.shape) != len(other.shape) {
		return false
	}
	for i, seg := range m.shape {
		o := other.shape[i]
		if seg != "*" && o != "*" && seg != o {
			return false
		}
	}
	return true
}

// MatcherSet manages a collection of path matchers and finds the unique
// match for a request path.
//
// Matchers are consulted in specificity order: templates with fewer
// parameter segments match first, so "/pets/count" beats "/pets/{petId}".
// Two overlapping templates of equal specificity are a configuration error
// surfaced at construction time, never at request time.
type MatcherSet struct {
	// matchers is sorted by specificity (fewest parameters first)
	matchers []*Matcher
}

// NewMatcherSet compiles a MatcherSet from a list of path templates.
//
// Returns a [gateerrors.ConfigError] when any template is malformed or when
// two templates of equal specificity can match the same concrete path.
func NewMatcherSet(templates []string) (*MatcherSet, error) {
	matchers := make([]*Matcher, 0, len(templates))

	for _, template := range templates {
		m, err := NewMatcher(template)
		if err != nil {
			return nil, &gateerrors.ConfigError{
				Option:  "contract.paths",
				Message: "invalid path template",
				Cause:   err,
			}
		}
		matchers = append(matchers, m)
	}

	// Ambiguity check: overlapping templates with the same parameter count
	// cannot be ordered deterministically.
	for i := 0; i < len(matchers); i++ {
		for j := i + 1; j < len(matchers); j++ {
			a, b := matchers[i], matchers[j]
			if a.paramCount == b.paramCount && a.template != b.template && a.overlaps(b) {
				return nil, &gateerrors.ConfigError{
					Option:  "contract.paths",
					Message: fmt.Sprintf("ambiguous path templates %q and %q", a.template, b.template),
				}
			}
		}
	}

	// Sort by specificity (fewest parameters first), then by template
	// length (longest first), then alphabetically for stability
	sort.Slice(matchers, func(i, j int) bool {
		if matchers[i].paramCount != matchers[j].paramCount {
			return matchers[i].paramCount < matchers[j].paramCount
		}
		if len(matchers[i].template) != len(matchers[j].template) {
			return len(matchers[i].template) > len(matchers[j].template)
		}
		return matchers[i].template < matchers[j].template
	})

	return &MatcherSet{matchers: matchers}, nil
}

// Match finds the most specific matching template for the given request path.
// Returns the matched template, extracted raw parameters, and whether a
// match was found.
func (ms *MatcherSet) Match(path string) (template string, params map[string]string, found bool) {
	for _, m := range ms.matchers {
		if matched, p := m.Match(path); matched {
			return m.template, p, true
		}
	}
	return "", nil, false
}

// Templates returns all templates in specificity order.
func (ms *MatcherSet) Templates() []string {
	templates := make([]string, len(ms.matchers))
	for i, m := range ms.matchers {
		templates[i] = m.template
	}
	return templates
}
