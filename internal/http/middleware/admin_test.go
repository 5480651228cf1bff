package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequireAdminKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		key    string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusOK},
		{"missing", "k1", "", http.StatusUnauthorized},
		{"wrong", "k1", "k2", http.StatusUnauthorized},
		{"match", "k1", "k1", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/admin", RequireAdminKey(tc.key), func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set(HeaderAdminKey, tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status: got=%d want=%d", rec.Code, tc.want)
			}
		})
	}
}
