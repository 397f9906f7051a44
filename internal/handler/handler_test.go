package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campushub/dissertation-api/internal/middleware"
	"github.com/campushub/dissertation-api/internal/models"
)

func newTestContext(t *testing.T, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestAuthHandlerMeRequiresAuth(t *testing.T) {
	handler := NewAuthHandler(nil)
	c, w := newTestContext(t, http.MethodGet, "/auth/me", "")

	handler.Me(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMeReturnsClaims(t *testing.T) {
	handler := NewAuthHandler(nil)
	c, w := newTestContext(t, http.MethodGet, "/auth/me", "")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:       "user-1",
		Email:        "alice@example.ac.uk",
		FullName:     "Alice",
		IsSupervisor: true,
	})

	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"alice@example.ac.uk"`)
	require.Contains(t, w.Body.String(), `"is_supervisor":true`)
}

func TestProposalHandlerSubmitRejectsMalformedBody(t *testing.T) {
	handler := NewProposalHandler(nil)
	c, w := newTestContext(t, http.MethodPost, "/proposals", `{"title":`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1"})

	handler.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkHandlerSubmitRejectsMalformedBody(t *testing.T) {
	handler := NewMarkHandler(nil)
	c, w := newTestContext(t, http.MethodPut, "/marks/mark-1", `not-json`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "sup-1", IsSupervisor: true})

	handler.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectHandlerListRejectsBadArchivedFlag(t *testing.T) {
	handler := NewProjectHandler(nil)
	c, w := newTestContext(t, http.MethodGet, "/projects?archived=maybe", "")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", IsAdmin: true})

	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
