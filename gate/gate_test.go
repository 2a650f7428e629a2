package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasgate/gateerrors"
)

const petstore = `
openapi: 3.0.3
info:
  title: Petstore
  version: 1.0.0
paths:
  /pets:
    get:
      operationId: listPets
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
            default: 20
        - name: status
          in: query
          schema:
            type: string
            enum: [available, pending, sold]
      responses:
        '200':
          description: pets
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Pet'
    post:
      operationId: createPet
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/NewPet'
      responses:
        '201':
          description: created
          headers:
            Location:
              required: true
              schema:
                type: string
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
  /pets/{petId}:
    get:
      operationId: getPet
      parameters:
        - name: petId
          in: path
          required: true
          schema:
            type: integer
      responses:
        '200':
          description: a pet
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
        '404':
          description: no such pet
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Error'
    delete:
      operationId: deletePet
      parameters:
        - name: petId
          in: path
          required: true
          schema:
            type: integer
      responses:
        '204':
          description: deleted
  /search:
    get:
      operationId: searchPets
      parameters:
        - name: q
          in: query
          required: true
          schema:
            type: string
      responses:
        '200':
          description: matches
          content:
            application/json:
              schema:
                type: array
                items:
                  type: string
components:
  schemas:
    Pet:
      type: object
      required: [id, name]
      properties:
        id:
          type: integer
        name:
          type: string
        tag:
          type: string
    NewPet:
      type: object
      required: [name]
      properties:
        name:
          type: string
          minLength: 1
        tag:
          type: string
    Error:
      type: object
      required: [code, message]
      properties:
        code:
          type: integer
        message:
          type: string
`

func sendJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func petControllers() []Option {
	return []Option{
		WithController("Pets", "listPets", func(w http.ResponseWriter, r *http.Request) {
			sendJSON(w, http.StatusOK, `[{"id":1,"name":"rex"}]`)
		}),
		WithController("Pets", "createPet", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/pets/2")
			sendJSON(w, http.StatusCreated, `{"id":2,"name":"fido"}`)
		}),
		WithController("Pets", "getPet", func(w http.ResponseWriter, r *http.Request) {
			sendJSON(w, http.StatusOK, `{"id":1,"name":"rex"}`)
		}),
		WithController("Pets", "deletePet", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
		WithController("Search", "searchPets", func(w http.ResponseWriter, r *http.Request) {
			sendJSON(w, http.StatusOK, `["rex"]`)
		}),
	}
}

// newGate builds a ready Gate over the petstore contract.
func newGate(t *testing.T, opts ...Option) *Gate {
	t.Helper()
	all := append([]Option{WithContractData([]byte(petstore))}, opts...)
	g, err := New(all...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.Wait(ctx))
	return g
}

func do(g *Gate, method, target string, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "error body must be JSON: %s", rec.Body.String())
	return body
}

func TestGate_EndToEnd(t *testing.T) {
	g := newGate(t, petControllers()...)

	t.Run("undeclared path yields 404", func(t *testing.T) {
		rec := do(g, http.MethodGet, "/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "not_found", body["error"])
	})

	t.Run("undeclared method yields 405 with Allow", func(t *testing.T) {
		rec := do(g, http.MethodPut, "/pets", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
	})

	t.Run("out-of-enum query parameter yields 400", func(t *testing.T) {
		rec := do(g, http.MethodGet, "/pets?status=bogus", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "parameters.query.status")
	})

	t.Run("missing required query parameter yields 400 with field path", func(t *testing.T) {
		rec := do(g, http.MethodGet, "/search", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "parameters.query.q")
	})

	t.Run("missing required body yields 400", func(t *testing.T) {
		rec := do(g, http.MethodPost, "/pets", "", map[string]string{"Content-Type": "application/json"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "parameters.body")
	})

	t.Run("body violating its schema yields 400", func(t *testing.T) {
		rec := do(g, http.MethodPost, "/pets", `{"tag":"dog"}`, map[string]string{"Content-Type": "application/json"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "name")
	})

	t.Run("undeclared body content type yields 400", func(t *testing.T) {
		rec := do(g, http.MethodPost, "/pets", `name=rex`, map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("conforming request passes through", func(t *testing.T) {
		rec := do(g, http.MethodGet, "/pets/7", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":1,"name":"rex"}`, rec.Body.String())
	})

	t.Run("conforming create passes the header guard", func(t *testing.T) {
		rec := do(g, http.MethodPost, "/pets", `{"name":"fido"}`, map[string]string{"Content-Type": "application/json"})
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "/pets/2", rec.Header().Get("Location"))
	})

	t.Run("bodyless response passes", func(t *testing.T) {
		rec := do(g, http.MethodDelete, "/pets/7", "", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Zero(t, rec.Body.Len())
	})

	t.Run("non-integer path parameter yields 400", func(t *testing.T) {
		rec := do(g, http.MethodGet, "/pets/rex", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "parameters.path.petId")
	})
}

func TestGate_RequestContext(t *testing.T) {
	var seen *RequestContext
	g := newGate(t, append(petControllers(),
		WithController("Pets", "getPet", func(w http.ResponseWriter, r *http.Request) {
			seen, _ = FromContext(r.Context())
			sendJSON(w, http.StatusOK, `{"id":1,"name":"rex"}`)
		}))...)

	rec := do(g, http.MethodGet, "/pets/123", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)

	id, ok := seen.Param("path", "petId")
	require.True(t, ok)
	assert.Equal(t, int64(123), id)
	assert.Equal(t, "GET /pets/{petId}", seen.Operation.ID())
}

func TestGate_DefaultApplied(t *testing.T) {
	var seen *RequestContext
	g := newGate(t, append(petControllers(),
		WithController("Pets", "listPets", func(w http.ResponseWriter, r *http.Request) {
			seen, _ = FromContext(r.Context())
			sendJSON(w, http.StatusOK, `[]`)
		}))...)

	rec := do(g, http.MethodGet, "/pets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)

	limit, ok := seen.Param("query", "limit")
	require.True(t, ok, "declared default must be applied when the parameter is absent")
	assert.EqualValues(t, 20, limit)
}

func TestGate_Strict(t *testing.T) {
	t.Run("undeclared query parameter ignored by default", func(t *testing.T) {
		g := newGate(t, petControllers()...)
		rec := do(g, http.MethodGet, "/pets?bogus=1", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("strict mode rejects undeclared query parameter", func(t *testing.T) {
		g := newGate(t, append(petControllers(), WithStrict(true))...)
		rec := do(g, http.MethodGet, "/pets?bogus=1", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "parameters.query.bogus")
	})

	t.Run("strict mode still admits standard headers", func(t *testing.T) {
		g := newGate(t, append(petControllers(), WithStrict(true))...)
		rec := do(g, http.MethodGet, "/pets", "", map[string]string{"User-Agent": "test", "Accept": "application/json"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestGate_ResponseGuard(t *testing.T) {
	undeclaredContentType := WithController("Pets", "listPets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "not what the contract says")
	})

	t.Run("undeclared content type yields generic 500 outside development", func(t *testing.T) {
		g := newGate(t, append(petControllers(), undeclaredContentType)...)
		rec := do(g, http.MethodGet, "/pets", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "response_invalid", body["error"])
		assert.Equal(t, "internal server error", body["detail"])
	})

	t.Run("undeclared content type yields diagnostic in development", func(t *testing.T) {
		g := newGate(t, append(petControllers(), undeclaredContentType, WithDevelopment(true))...)
		rec := do(g, http.MethodGet, "/pets", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "text/plain")
	})

	t.Run("schema-violating body yields 500", func(t *testing.T) {
		g := newGate(t, append(petControllers(),
			WithController("Pets", "listPets", func(w http.ResponseWriter, r *http.Request) {
				sendJSON(w, http.StatusOK, `[{"id":"not-an-int"}]`)
			}))...)
		rec := do(g, http.MethodGet, "/pets", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("rejected response leaves no handler headers behind", func(t *testing.T) {
		g := newGate(t, append(petControllers(),
			WithController("Pets", "getPet", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Upstream", "cache-7")
				w.Header().Set("Location", "/pets/7")
				w.Header().Set("Content-Type", "text/plain")
				fmt.Fprint(w, "plain")
			}))...)
		rec := do(g, http.MethodGet, "/pets/7", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Upstream"))
		assert.Empty(t, rec.Header().Get("Location"))
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})

	t.Run("approved response carries handler headers", func(t *testing.T) {
		g := newGate(t, petControllers()...)
		rec := do(g, http.MethodPost, "/pets", `{"name":"fido"}`,
			map[string]string{"Content-Type": "application/json"})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "/pets/2", rec.Header().Get("Location"))
	})

	t.Run("missing required response header yields 500", func(t *testing.T) {
		g := newGate(t, append(petControllers(),
			WithController("Pets", "createPet", func(w http.ResponseWriter, r *http.Request) {
				sendJSON(w, http.StatusCreated, `{"id":2,"name":"fido"}`)
			}), WithDevelopment(true))...)
		rec := do(g, http.MethodPost, "/pets", `{"name":"fido"}`, map[string]string{"Content-Type": "application/json"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "response.headers.Location")
	})
}

func TestGate_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := newGate(t, append(petControllers(),
		WithController("Pets", "listPets", func(w http.ResponseWriter, r *http.Request) {
			cancel()
			sendJSON(w, http.StatusOK, `[]`)
		}))...)

	req := httptest.NewRequest(http.MethodGet, "/pets", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	// Cancellation observed before the guard: nothing is written
	assert.Zero(t, rec.Body.Len())
}

func TestGate_StartupFailure(t *testing.T) {
	g, err := New(WithContractData([]byte("not: [valid")))
	require.NoError(t, err)

	ctx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()
	require.Error(t, g.Wait(ctx))

	rec := do(g, http.MethodGet, "/pets", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "startup_failed")
}

func TestGate_BindingCompleteness(t *testing.T) {
	t.Run("missing controller is fatal at load outside development", func(t *testing.T) {
		g, err := New(WithContractData([]byte(petstore)))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		loadErr := g.Wait(ctx)
		require.Error(t, loadErr)
		assert.ErrorIs(t, loadErr, gateerrors.ErrBinding)
	})

	t.Run("mock fallback satisfies completeness", func(t *testing.T) {
		g := newGate(t, WithMockFallback(true))
		rec := do(g, http.MethodGet, "/pets", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("development tolerates missing controllers", func(t *testing.T) {
		g := newGate(t, WithDevelopment(true))
		rec := do(g, http.MethodGet, "/pets", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, "development mode degrades to a mock: %s", rec.Body.String())
	})
}

func TestGate_ConfigErrors(t *testing.T) {
	t.Run("no contract source", func(t *testing.T) {
		_, err := New()
		assert.ErrorIs(t, err, gateerrors.ErrConfig)
	})

	t.Run("two contract sources", func(t *testing.T) {
		_, err := New(WithContractFile("a.yaml"), WithContractData([]byte("x")))
		assert.ErrorIs(t, err, gateerrors.ErrConfig)
	})

	t.Run("nil handler", func(t *testing.T) {
		_, err := New(WithContractData([]byte(petstore)), WithController("A", "b", nil))
		assert.ErrorIs(t, err, gateerrors.ErrConfig)
	})
}
