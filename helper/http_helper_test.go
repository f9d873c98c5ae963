package helper

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-cms/models"
)

func TestUnderscore(t *testing.T) {
	assert.Equal(t, "title", Underscore("Title"))
	assert.Equal(t, "role_list", Underscore("RoleList"))
	assert.Equal(t, "template_id", Underscore("TemplateID"))
	assert.Equal(t, "url_path", Underscore("UrlPath"))
	assert.Equal(t, "html_body2", Underscore("HTMLBody2"))
}

func TestSendDomainErrorMapsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHTTPHelper()

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrorValidation{Field: "title", Message: "taken"}, http.StatusBadRequest, "badRequest"},
		{models.ErrorNotFound{Resource: "version", ID: "x"}, http.StatusNotFound, "notFound"},
		{fmt.Errorf("wrapped: %w", models.ErrorConflict{Message: "dup"}), http.StatusConflict, "conflict"},
		{models.ErrorUnsupported{Message: "root"}, http.StatusUnprocessableEntity, "unsupportedOperation"},
		{models.ErrorUnauthorized{Message: "bad"}, http.StatusUnauthorized, "unAuthorized"},
		{errors.New("boom"), http.StatusInternalServerError, "internalError"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		require.NoError(t, h.SendDomainError(c, tc.err))
		assert.Equal(t, tc.status, w.Code, tc.err.Error())

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body["code_type"])
	}
}

func TestValidateStructTranslatesErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHTTPHelper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ok := h.ValidateStruct(c, models.LoginRequest{Email: "not-an-email"})
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		CodeMessage map[string][]string `json:"code_message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.CodeMessage, "email")
	assert.Contains(t, body.CodeMessage, "password")
}

func TestGeneratePaging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHTTPHelper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/articles?status=Active&page=2&limit=10", nil)

	paging := h.GeneratePaging(c, 0, 0, 10, 2, 35)
	assert.Equal(t, 4, paging["total_pages"])
	links := paging["links"].(map[string]interface{})
	assert.Contains(t, links["next"], "page=3")
	assert.Contains(t, links["previous"], "page=1")
	assert.Contains(t, links["next"], "status=Active")
}
