package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/railmadad/complaint-api/internal/middleware"
	"github.com/railmadad/complaint-api/internal/models"
)

type envelope struct {
	Data     map[string]interface{} `json:"data"`
	Warnings []models.Warning       `json:"warnings"`
	Meta     map[string]interface{} `json:"meta"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// withTestActor attaches claims taken from the X-Test-Role and X-Test-User headers.
func withTestActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			userID := c.GetHeader("X-Test-User")
			if userID == "" {
				userID = "test-user"
			}
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.UserRole(role)})
			c.Next()
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED"}})
		c.Abort()
	}
}

// withOptionalTestActor attaches test claims when headers are present and
// otherwise lets the request through anonymously.
func withOptionalTestActor() gin.HandlerFunc {
	required := withTestActor()
	return func(c *gin.Context) {
		if c.GetHeader("X-Test-Role") == "" {
			c.Next()
			return
		}
		required(c)
	}
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
