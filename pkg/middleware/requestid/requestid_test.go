package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, Value(c)) })

	cases := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"client id kept", "abc-123", true},
		{"spaces rejected", "abc 123", false},
		{"oversize rejected", strings.Repeat("a", maxLength+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.incoming != "" {
				req.Header.Set(headerKey, tc.incoming)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get(headerKey)
			assert.Equal(t, got, rec.Body.String())
			if tc.keep {
				assert.Equal(t, tc.incoming, got)
				return
			}
			_, err := uuid.Parse(got)
			require.NoError(t, err)
		})
	}
}
