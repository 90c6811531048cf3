package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
)

type addItemBody struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
	Method    string `json:"method" validate:"omitempty,oneof=card cash"`
}

func decode(t *testing.T, body string) (addItemBody, error) {
	t.Helper()
	var dest addItemBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := DecodeJSONBody(httptest.NewRecorder(), req, &dest)
	return dest, err
}

func TestDecodeJSONBodyValid(t *testing.T) {
	dest, err := decode(t, `{"product_id":"6f1d3a2e-8a4e-4b8f-9d55-1f1f6f1b2c3d","quantity":2}`)
	require.NoError(t, err)
	assert.Equal(t, 2, dest.Quantity)
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	_, err := decode(t, `{"product_id":"nope","quantity":0,"method":"cheque"}`)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Equal(t, "must be a valid UUID", details["product_id"])
	assert.Equal(t, "must be at least 1", details["quantity"])
	assert.Equal(t, "must be one of: card cash", details["method"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	for _, body := range []string{``, `{"unknown":1}`, `{"quantity":1}{"quantity":2}`, `[1]`} {
		_, err := decode(t, body)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), body)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=20&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	v, err = ParseQueryInt(req, "missing", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = ParseQueryInt(req, "bad", 10, 1, 100)
	assert.Error(t, err)
	_, err = ParseQueryInt(req, "big", 10, 1, 100)
	assert.Error(t, err)
}

func TestParseUUIDParam(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderID", "6f1d3a2e-8a4e-4b8f-9d55-1f1f6f1b2c3d")
	rctx.URLParams.Add("bad", "123")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	id, err := ParseUUIDParam(req, "orderID")
	require.NoError(t, err)
	assert.Equal(t, "6f1d3a2e-8a4e-4b8f-9d55-1f1f6f1b2c3d", id.String())

	_, err = ParseUUIDParam(req, "bad")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 0))
	assert.Equal(t, "hel", SanitizeString("hello", 3))
	assert.Equal(t, "h", SanitizeString("hé", 2))
}
