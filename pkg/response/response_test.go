package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventportal/backend/pkg/apperror"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperror.Validation(apperror.CodeInvalidToken, "x"), http.StatusBadRequest},
		{apperror.Rule(apperror.CodeNoVacancies, "x"), http.StatusBadRequest},
		{apperror.NotFound(apperror.CodeEventNotFound, "x"), http.StatusNotFound},
		{apperror.New(apperror.KindUnauthenticated, apperror.CodeUnauthenticated, "x"), http.StatusUnauthorized},
		{apperror.New(apperror.KindForbidden, apperror.CodeForbidden, "x"), http.StatusForbidden},
		{apperror.External(apperror.CodeDeliveryFailed, "x", errors.New("smtp")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestErrorLocalizesFromAcceptLanguage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Accept-Language", "en-US,en;q=0.9")

	Error(c, apperror.Rule(apperror.CodeNoVacancies, "full"))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "There are no vacancies available for this tutorial.", body.Error)
	assert.Equal(t, string(apperror.CodeNoVacancies), body.Code)
}
