package mock

import (
	"errors"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasgate/gateerrors"
	"github.com/erraggy/oasgate/schema"
)

func typed(t string) *openapi3.Types {
	return &openapi3.Types{t}
}

func f64(v float64) *float64 { return &v }
func u64(v uint64) *uint64   { return &v }

// roundTrip generates a value and asserts it passes the same validation the
// response guard applies.
func roundTrip(t *testing.T, s *openapi3.Schema) any {
	t.Helper()
	g := New(WithSeed(7))
	v, err := g.Generate(s)
	require.NoError(t, err)
	errs := schema.NewValidator().Validate(v, s, "body")
	assert.Empty(t, errs, "generated value %#v must satisfy its own schema", v)
	return v
}

func TestGenerator_LiteralsWinOverSynthesis(t *testing.T) {
	t.Run("example verbatim", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:    typed(openapi3.TypeString),
			Example: "as-declared",
		}
		v, err := New().Generate(s)
		require.NoError(t, err)
		assert.Equal(t, "as-declared", v)
	})

	t.Run("default when no example", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:    typed(openapi3.TypeInteger),
			Default: 42,
		}
		v, err := New().Generate(s)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("enum member", func(t *testing.T) {
		s := &openapi3.Schema{
			Type: typed(openapi3.TypeString),
			Enum: []any{"red", "green", "blue"},
		}
		v, err := New(WithSeed(3)).Generate(s)
		require.NoError(t, err)
		assert.Contains(t, []any{"red", "green", "blue"}, v)
	})
}

func TestGenerator_Strings(t *testing.T) {
	t.Run("length bounds", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:      typed(openapi3.TypeString),
			MinLength: 10,
			MaxLength: u64(20),
		}
		v := roundTrip(t, s)
		str, ok := v.(string)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(str), 10)
		assert.LessOrEqual(t, len(str), 20)
	})

	t.Run("uuid format", func(t *testing.T) {
		s := &openapi3.Schema{Type: typed(openapi3.TypeString), Format: "uuid"}
		v := roundTrip(t, s)
		assert.NoError(t, uuid.Validate(v.(string)))
	})

	t.Run("date-time format", func(t *testing.T) {
		s := &openapi3.Schema{Type: typed(openapi3.TypeString), Format: "date-time"}
		roundTrip(t, s)
	})

	t.Run("email format", func(t *testing.T) {
		s := &openapi3.Schema{Type: typed(openapi3.TypeString), Format: "email"}
		v := roundTrip(t, s)
		assert.Contains(t, v.(string), "@")
	})

	t.Run("bare pattern is unsatisfiable", func(t *testing.T) {
		s := &openapi3.Schema{Type: typed(openapi3.TypeString), Pattern: `^[A-Z]{3}-\d{4}$`}
		_, err := New().Generate(s)
		require.Error(t, err)
		assert.ErrorIs(t, err, gateerrors.ErrGeneration)
	})

	t.Run("pattern with example is fine", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:    typed(openapi3.TypeString),
			Pattern: `^[A-Z]{3}-\d{4}$`,
			Example: "ABC-1234",
		}
		v, err := New().Generate(s)
		require.NoError(t, err)
		assert.Equal(t, "ABC-1234", v)
	})
}

func TestGenerator_Numbers(t *testing.T) {
	t.Run("integer within bounds", func(t *testing.T) {
		s := &openapi3.Schema{
			Type: typed(openapi3.TypeInteger),
			Min:  f64(5),
			Max:  f64(9),
		}
		v := roundTrip(t, s)
		n, ok := v.(int64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, n, int64(5))
		assert.LessOrEqual(t, n, int64(9))
	})

	t.Run("exclusive bounds", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:         typed(openapi3.TypeInteger),
			Min:          f64(5),
			Max:          f64(7),
			ExclusiveMin: true,
			ExclusiveMax: true,
		}
		v := roundTrip(t, s)
		assert.Equal(t, int64(6), v)
	})

	t.Run("multipleOf", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:       typed(openapi3.TypeNumber),
			Min:        f64(10),
			Max:        f64(50),
			MultipleOf: f64(7),
		}
		roundTrip(t, s)
	})

	t.Run("contradictory bounds fail", func(t *testing.T) {
		s := &openapi3.Schema{
			Type: typed(openapi3.TypeInteger),
			Min:  f64(10),
			Max:  f64(5),
		}
		_, err := New().Generate(s)
		assert.ErrorIs(t, err, gateerrors.ErrGeneration)
	})

	t.Run("no multiple within range fails", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:       typed(openapi3.TypeNumber),
			Min:        f64(10),
			Max:        f64(12),
			MultipleOf: f64(100),
		}
		_, err := New().Generate(s)
		assert.ErrorIs(t, err, gateerrors.ErrGeneration)
	})
}

func TestGenerator_Arrays(t *testing.T) {
	t.Run("respects item bounds", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:     typed(openapi3.TypeArray),
			MinItems: 3,
			MaxItems: u64(5),
			Items: &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: typed(openapi3.TypeInteger),
			}},
		}
		v := roundTrip(t, s)
		items, ok := v.([]any)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(items), 3)
	})

	t.Run("unique items", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:        typed(openapi3.TypeArray),
			MinItems:    4,
			UniqueItems: true,
			Items: &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: typed(openapi3.TypeInteger),
				Min:  f64(0),
				Max:  f64(1000),
			}},
		}
		roundTrip(t, s)
	})

	t.Run("unique items unreachable with constant schema", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:        typed(openapi3.TypeArray),
			MinItems:    3,
			UniqueItems: true,
			Items: &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: typed(openapi3.TypeString),
				Enum: []any{"only"},
			}},
		}
		_, err := New().Generate(s)
		assert.ErrorIs(t, err, gateerrors.ErrGeneration)
	})
}

func TestGenerator_Objects(t *testing.T) {
	petSchema := &openapi3.Schema{
		Type:     typed(openapi3.TypeObject),
		Required: []string{"id", "name"},
		Properties: openapi3.Schemas{
			"id": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: typed(openapi3.TypeInteger),
				Min:  f64(1),
			}},
			"name": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: typed(openapi3.TypeString),
			}},
			"tag": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type: typed(openapi3.TypeString),
			}},
		},
	}

	t.Run("required properties present", func(t *testing.T) {
		v := roundTrip(t, petSchema)
		obj, ok := v.(map[string]any)
		require.True(t, ok)
		assert.Contains(t, obj, "id")
		assert.Contains(t, obj, "name")
	})

	t.Run("required unsatisfiable propagates", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:     typed(openapi3.TypeObject),
			Required: []string{"code"},
			Properties: openapi3.Schemas{
				"code": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:    typed(openapi3.TypeString),
					Pattern: `^\d{6}$`,
				}},
			},
		}
		_, err := New().Generate(s)
		assert.ErrorIs(t, err, gateerrors.ErrGeneration)
	})

	t.Run("optional unsatisfiable omitted", func(t *testing.T) {
		s := &openapi3.Schema{
			Type: typed(openapi3.TypeObject),
			Properties: openapi3.Schemas{
				"fine": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: typed(openapi3.TypeBoolean),
				}},
				"impossible": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:    typed(openapi3.TypeString),
					Pattern: `^x$`,
				}},
			},
		}
		v, err := New(WithSeed(1)).Generate(s)
		require.NoError(t, err)
		obj := v.(map[string]any)
		assert.Contains(t, obj, "fine")
		assert.NotContains(t, obj, "impossible")
	})

	t.Run("minProperties padded", func(t *testing.T) {
		s := &openapi3.Schema{
			Type:     typed(openapi3.TypeObject),
			MinProps: 3,
		}
		v := roundTrip(t, s)
		assert.GreaterOrEqual(t, len(v.(map[string]any)), 3)
	})
}

func TestGenerator_Composition(t *testing.T) {
	t.Run("allOf merged", func(t *testing.T) {
		s := &openapi3.Schema{
			AllOf: openapi3.SchemaRefs{
				{Value: &openapi3.Schema{
					Type:     typed(openapi3.TypeObject),
					Required: []string{"id"},
					Properties: openapi3.Schemas{
						"id": {Value: &openapi3.Schema{Type: typed(openapi3.TypeInteger)}},
					},
				}},
				{Value: &openapi3.Schema{
					Required: []string{"name"},
					Properties: openapi3.Schemas{
						"name": {Value: &openapi3.Schema{Type: typed(openapi3.TypeString)}},
					},
				}},
			},
		}
		v, err := New(WithSeed(11)).Generate(s)
		require.NoError(t, err)
		obj := v.(map[string]any)
		assert.Contains(t, obj, "id")
		assert.Contains(t, obj, "name")
	})

	t.Run("oneOf picks a satisfiable branch", func(t *testing.T) {
		s := &openapi3.Schema{
			OneOf: openapi3.SchemaRefs{
				{Value: &openapi3.Schema{Type: typed(openapi3.TypeString), Pattern: `impossible`}},
				{Value: &openapi3.Schema{Type: typed(openapi3.TypeInteger), Min: f64(1), Max: f64(1)}},
			},
		}
		v, err := New(WithSeed(5)).Generate(s)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("no satisfiable branch fails", func(t *testing.T) {
		s := &openapi3.Schema{
			OneOf: openapi3.SchemaRefs{
				{Value: &openapi3.Schema{Type: typed(openapi3.TypeString), Pattern: `a`}},
				{Value: &openapi3.Schema{Type: typed(openapi3.TypeString), Pattern: `b`}},
			},
		}
		_, err := New().Generate(s)
		assert.ErrorIs(t, err, gateerrors.ErrGeneration)
	})
}

func TestGenerator_Determinism(t *testing.T) {
	s := &openapi3.Schema{
		Type:     typed(openapi3.TypeObject),
		Required: []string{"id", "name", "score"},
		Properties: openapi3.Schemas{
			"id":    {Value: &openapi3.Schema{Type: typed(openapi3.TypeInteger), Min: f64(1), Max: f64(1e6)}},
			"name":  {Value: &openapi3.Schema{Type: typed(openapi3.TypeString), MinLength: 5}},
			"score": {Value: &openapi3.Schema{Type: typed(openapi3.TypeNumber), Min: f64(0), Max: f64(1)}},
		},
	}

	a, err := New(WithSeed(99)).Generate(s)
	require.NoError(t, err)
	b, err := New(WithSeed(99)).Generate(s)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerator_NilSchema(t *testing.T) {
	_, err := New().Generate(nil)
	require.Error(t, err)
	var reqErr *gateerrors.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, gateerrors.KindGeneration, reqErr.Kind)
}

func TestGenerator_NullableRecursionStops(t *testing.T) {
	node := &openapi3.Schema{
		Type:     typed(openapi3.TypeObject),
		Required: []string{"value"},
	}
	node.Properties = openapi3.Schemas{
		"value": {Value: &openapi3.Schema{Type: typed(openapi3.TypeInteger)}},
		"next":  {Value: node},
	}
	// next is optional, so depth exhaustion drops it instead of failing
	v, err := New(WithSeed(2)).Generate(node)
	require.NoError(t, err)
	assert.Contains(t, v.(map[string]any), "value")
}
