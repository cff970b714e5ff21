package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"deploy-bot"}`))
	require.NoError(t, ParseJSON(httptest.NewRecorder(), req, &dest))
	assert.Equal(t, "deploy-bot", dest.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	assert.Error(t, ParseJSON(httptest.NewRecorder(), req, &dest))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	w := httptest.NewRecorder()
	assert.False(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathInt64(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/admin/bots/12", nil), map[string]string{"id": "12"})
	id, err := ParsePathInt64(req, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	req = mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/admin/bots/abc", nil), map[string]string{"id": "abc"})
	w := httptest.NewRecorder()
	_, ok := ParsePathInt64OrError(w, req, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err = ParsePathInt64(httptest.NewRequest(http.MethodGet, "/", nil), "id")
	assert.EqualError(t, err, "missing path parameter: id")
}
