package mock

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/erraggy/oasgate/gateerrors"
	"github.com/erraggy/oasgate/schema"
)

// maxDepth bounds schema recursion so self-referencing schemas terminate.
const maxDepth = 24

// words feed synthetic string generation.
var words = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot",
	"golf", "hotel", "india", "juliet", "kilo", "lima",
}

// Generator produces schema-valid synthetic values.
// A Generator is not safe for concurrent use; create one per goroutine or
// guard it externally.
type Generator struct {
	rng *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes generation deterministic. Without it each Generator is
// seeded from the clock.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a value satisfying the schema's constraints.
//
// Literal example and default values declared on the schema are returned
// verbatim when present. Returns a Generation error when the schema is nil
// or its constraints cannot be satisfied.
func (g *Generator) Generate(s *openapi3.Schema) (any, error) {
	if s == nil {
		return nil, generationErr("no schema to generate from", nil)
	}
	return g.generate(s, 0)
}

func (g *Generator) generate(s *openapi3.Schema, depth int) (any, error) {
	// An absent sub-schema constrains nothing; any value satisfies it
	if s == nil {
		return g.word(), nil
	}
	if depth > maxDepth {
		if s.Nullable {
			return nil, nil
		}
		return nil, generationErr("schema recursion exceeds maximum depth", nil)
	}

	// Literal values beat synthesis
	if s.Example != nil {
		return s.Example, nil
	}
	if s.Default != nil {
		return s.Default, nil
	}
	if len(s.Enum) > 0 {
		return s.Enum[g.rng.Intn(len(s.Enum))], nil
	}

	// Composition
	if len(s.AllOf) > 0 {
		merged, err := mergeAllOf(s)
		if err != nil {
			return nil, err
		}
		return g.generate(merged, depth+1)
	}
	if v, ok, err := g.generateOneOf(s.OneOf, depth); ok || err != nil {
		return v, err
	}
	if v, ok, err := g.generateOneOf(s.AnyOf, depth); ok || err != nil {
		return v, err
	}

	switch schema.TypeOf(s) {
	case openapi3.TypeString:
		return g.generateString(s)
	case openapi3.TypeInteger:
		n, err := g.generateNumber(s)
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	case openapi3.TypeNumber:
		return g.generateNumber(s)
	case openapi3.TypeBoolean:
		return g.rng.Intn(2) == 0, nil
	case openapi3.TypeArray:
		return g.generateArray(s, depth)
	case openapi3.TypeObject:
		return g.generateObject(s, depth)
	case "":
		// Untyped schema: objects are the safest guess when properties are
		// declared, otherwise a string
		if len(s.Properties) > 0 {
			return g.generateObject(s, depth)
		}
		return g.word(), nil
	default:
		return nil, generationErr(fmt.Sprintf("unsupported schema type %q", schema.TypeOf(s)), nil)
	}
}

// generateOneOf picks one satisfiable alternative. The bool reports whether
// alternatives were present at all.
func (g *Generator) generateOneOf(refs openapi3.SchemaRefs, depth int) (any, bool, error) {
	if len(refs) == 0 {
		return nil, false, nil
	}

	// Try alternatives starting at a random offset so unseeded generation
	// varies, but every alternative gets a chance.
	offset := g.rng.Intn(len(refs))
	var lastErr error
	for i := range refs {
		ref := refs[(offset+i)%len(refs)]
		sub := schema.Deref(ref)
		if sub == nil {
			continue
		}
		v, err := g.generate(sub, depth+1)
		if err == nil {
			return v, true, nil
		}
		lastErr = err
	}
	return nil, true, generationErr("no satisfiable oneOf/anyOf alternative", lastErr)
}

func (g *Generator) generateString(s *openapi3.Schema) (any, error) {
	// Patterns cannot be synthesized; without a literal value the schema is
	// unsatisfiable for this generator.
	if s.Pattern != "" {
		return nil, generationErr(
			fmt.Sprintf("cannot generate a value for pattern %q without an example, default, or enum", s.Pattern), nil)
	}

	switch s.Format {
	case "uuid":
		return uuid.New().String(), nil
	case "date":
		return g.randomTime().Format("2006-01-02"), nil
	case "date-time":
		return g.randomTime().Format(time.RFC3339), nil
	case "email":
		return g.word() + "@example.com", nil
	case "uri":
		return "https://example.com/" + g.word(), nil
	case "ipv4":
		return fmt.Sprintf("192.0.2.%d", g.rng.Intn(256)), nil
	}

	minLen := int(s.MinLength)
	maxLen := math.MaxInt32
	if s.MaxLength != nil {
		maxLen = int(*s.MaxLength)
	}
	if minLen > maxLen {
		return nil, generationErr(
			fmt.Sprintf("minLength %d exceeds maxLength %d", minLen, maxLen), nil)
	}

	out := g.word()
	for len(out) < minLen {
		out += "-" + g.word()
	}
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out, nil
}

func (g *Generator) generateNumber(s *openapi3.Schema) (float64, error) {
	lo, hi := 0.0, 100.0
	if s.Min != nil {
		lo = *s.Min
		if s.ExclusiveMin {
			lo++
		}
		if s.Max == nil {
			hi = lo + 100
		}
	}
	if s.Max != nil {
		hi = *s.Max
		if s.ExclusiveMax {
			hi--
		}
		if s.Min == nil && hi < lo {
			lo = hi - 100
		}
	}
	if lo > hi {
		return 0, generationErr(
			fmt.Sprintf("minimum %v exceeds maximum %v", lo, hi), nil)
	}

	if s.MultipleOf != nil && *s.MultipleOf != 0 {
		step := *s.MultipleOf
		first := math.Ceil(lo/step) * step
		if first > hi {
			return 0, generationErr(
				fmt.Sprintf("no multiple of %v within [%v, %v]", step, lo, hi), nil)
		}
		count := int64(math.Floor((hi-first)/step)) + 1
		return first + float64(g.rng.Int63n(count))*step, nil
	}

	if schema.TypeOf(s) == openapi3.TypeInteger {
		lo, hi = math.Ceil(lo), math.Floor(hi)
		if lo > hi {
			return 0, generationErr(
				fmt.Sprintf("no integer within [%v, %v]", *s.Min, *s.Max), nil)
		}
		return lo + float64(g.rng.Int63n(int64(hi-lo)+1)), nil
	}
	return lo + g.rng.Float64()*(hi-lo), nil
}

func (g *Generator) generateArray(s *openapi3.Schema, depth int) (any, error) {
	count := int(s.MinItems)
	if count == 0 {
		count = 2
	}
	if s.MaxItems != nil {
		if int(s.MinItems) > int(*s.MaxItems) {
			return nil, generationErr(
				fmt.Sprintf("minItems %d exceeds maxItems %d", s.MinItems, *s.MaxItems), nil)
		}
		if count > int(*s.MaxItems) {
			count = int(*s.MaxItems)
		}
	}

	item := schema.Deref(s.Items)
	out := make([]any, 0, count)
	seen := make(map[string]bool, count)
	for i := 0; len(out) < count; i++ {
		// A few retries cover uniqueItems collisions; constant schemas
		// (single-value enums) can never produce distinct items
		if i > count*8 {
			return nil, generationErr("cannot generate enough unique array items", nil)
		}
		v, err := g.generate(item, depth+1)
		if err != nil {
			return nil, err
		}
		if s.UniqueItems {
			key := fmt.Sprintf("%T:%v", v, v)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, v)
	}
	return out, nil
}

func (g *Generator) generateObject(s *openapi3.Schema, depth int) (any, error) {
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}

	// Deterministic property order keeps seeded generation reproducible
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(s.Properties))
	for _, name := range names {
		prop := schema.Deref(s.Properties[name])
		v, err := g.generate(prop, depth+1)
		if err != nil {
			if required[name] {
				return nil, err
			}
			// Optional property that cannot be generated is omitted
			continue
		}
		out[name] = v
	}

	// Required properties without a declared schema still need a value
	for _, name := range s.Required {
		if _, ok := out[name]; !ok {
			out[name] = g.word()
		}
	}

	if uint64(len(out)) < s.MinProps {
		if s.AdditionalProperties.Has != nil && !*s.AdditionalProperties.Has {
			return nil, generationErr(
				fmt.Sprintf("minProperties %d unreachable with additionalProperties disallowed", s.MinProps), nil)
		}
		for i := 0; uint64(len(out)) < s.MinProps; i++ {
			out[fmt.Sprintf("extra%d", i)] = g.word()
		}
	}

	return out, nil
}

// randomTime returns a plausible timestamp within the last year.
func (g *Generator) randomTime() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(g.rng.Int63n(int64(365 * 24 * time.Hour))))
}

func (g *Generator) word() string {
	return words[g.rng.Intn(len(words))]
}

// mergeAllOf folds allOf branches into a single schema. Only the constraint
// surface the generator understands is merged.
func mergeAllOf(s *openapi3.Schema) (*openapi3.Schema, error) {
	merged := new(openapi3.Schema)
	*merged = *s
	merged.AllOf = nil
	merged.Properties = openapi3.Schemas{}
	for k, v := range s.Properties {
		merged.Properties[k] = v
	}

	for _, ref := range s.AllOf {
		sub := schema.Deref(ref)
		if sub == nil {
			continue
		}
		if sub.Type != nil && merged.Type == nil {
			merged.Type = sub.Type
		}
		if sub.Format != "" && merged.Format == "" {
			merged.Format = sub.Format
		}
		if sub.Example != nil && merged.Example == nil {
			merged.Example = sub.Example
		}
		if len(sub.Enum) > 0 && len(merged.Enum) == 0 {
			merged.Enum = sub.Enum
		}
		merged.Required = append(merged.Required, sub.Required...)
		for k, v := range sub.Properties {
			if _, ok := merged.Properties[k]; !ok {
				merged.Properties[k] = v
			}
		}
		if sub.Min != nil && (merged.Min == nil || *sub.Min > *merged.Min) {
			merged.Min = sub.Min
		}
		if sub.Max != nil && (merged.Max == nil || *sub.Max < *merged.Max) {
			merged.Max = sub.Max
		}
		if sub.MinLength > merged.MinLength {
			merged.MinLength = sub.MinLength
		}
		if sub.MaxLength != nil && (merged.MaxLength == nil || *sub.MaxLength < *merged.MaxLength) {
			merged.MaxLength = sub.MaxLength
		}
		if sub.Pattern != "" && merged.Pattern == "" {
			merged.Pattern = sub.Pattern
		}
	}
	return merged, nil
}

func generationErr(detail string, cause error) *gateerrors.RequestError {
	err := gateerrors.NewRequestError(gateerrors.KindGeneration, detail)
	err.Cause = cause
	return err
}
