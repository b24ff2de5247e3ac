package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newRouter(signingKey string, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/guarded", StaffAuth(signingKey, "qrattend"), handler)
	return r
}

func adminGated(c *gin.Context) {
	if !RequireAdmin(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func doRequest(t *testing.T, r *gin.Engine, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStaffAuth_MissingToken(t *testing.T) {
	r := newRouter(testKey, adminGated)
	if w := doRequest(t, r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestStaffAuth_InvalidToken(t *testing.T) {
	r := newRouter(testKey, adminGated)
	if w := doRequest(t, r, "not-a-jwt"); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAdmin_AllowsAdmin(t *testing.T) {
	pair, err := Issue(1, "root", true, "qrattend", testKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	r := newRouter(testKey, adminGated)
	if w := doRequest(t, r, pair.AccessToken); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
}

func TestRequireAdmin_SoftDeniesNonAdmin(t *testing.T) {
	pair, err := Issue(2, "jo", false, "qrattend", testKey, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	r := newRouter(testKey, adminGated)
	w := doRequest(t, r, pair.AccessToken)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	var body struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Redirect string `json:"redirect"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("denial body: %v", err)
	}
	if body.Success {
		t.Error("denial reports success")
	}
	if body.Message == "" || body.Redirect == "" {
		t.Errorf("denial should carry a notice and redirect hint, got %+v", body)
	}
}
