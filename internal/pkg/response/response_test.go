package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "policy-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(err error) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	FromError(c, zap.NewNop(), err)
	return w
}

func TestFromError_DomainKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{xerrors.New(xerrors.ErrInvalidInput, "Invalid policy number."), http.StatusBadRequest},
		{xerrors.New(xerrors.ErrNotFound, "Policy 9 was not found."), http.StatusNotFound},
		{xerrors.New(xerrors.ErrConflict, "Policy 9 is already cancelled."), http.StatusConflict},
		{xerrors.NewWithCause(xerrors.ErrInternal, errors.New("db gone"), "Failed to load policies."), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := serve(tc.err)
		assert.Equal(t, tc.code, w.Code)
		assert.Equal(t, tc.err.Error(), w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	}
}

func TestFromError_UntypedHidesDetail(t *testing.T) {
	w := serve(errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", w.Body.String())
}

func TestCreated(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Created(c, "/api/policies/1004", gin.H{"policyNumber": 1004})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/policies/1004", w.Header().Get("Location"))
	assert.JSONEq(t, `{"policyNumber":1004}`, w.Body.String())
}
