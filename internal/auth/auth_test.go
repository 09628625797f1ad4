package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tarlanskakov/patenr-ali-sh/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

func newIssuer(t *testing.T, secret string) *auth.Issuer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return auth.NewIssuer([]byte("test-signing-key"), "https://patentchain.test", time.Hour, string(hash))
}

func TestExchange(t *testing.T) {
	iss := newIssuer(t, "s3cret")

	tok, exp, err := iss.Exchange("s3cret")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v is not in the future", exp)
	}
	claims, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Type != auth.TypeAdmin || claims.Subject != "admin" || claims.ID == "" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	if _, _, err := iss.Exchange("wrong"); !errors.Is(err, auth.ErrBadSecret) {
		t.Errorf("wrong secret: err = %v, want ErrBadSecret", err)
	}
}

func TestExchange_disabled(t *testing.T) {
	iss := auth.NewIssuer([]byte("k"), "iss", 0, "")
	if iss.Enabled() {
		t.Fatal("issuer without secret hash should be disabled")
	}
	if _, _, err := iss.Exchange(""); !errors.Is(err, auth.ErrBadSecret) {
		t.Errorf("err = %v, want ErrBadSecret", err)
	}
}

func TestVerify_rejects(t *testing.T) {
	iss := newIssuer(t, "s3cret")
	other := auth.NewIssuer([]byte("another-key"), "https://patentchain.test", time.Hour, "")
	foreign, _, err := other.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	wrongType, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://patentchain.test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: "user",
	}).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://patentchain.test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Type: auth.TypeAdmin,
	}).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for name, tok := range map[string]string{
		"garbage":     "not-a-jwt",
		"foreign key": foreign,
		"wrong type":  wrongType,
		"expired":     expired,
	} {
		if _, err := iss.Verify(tok); err == nil {
			t.Errorf("%s: Verify accepted the token", name)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	iss := newIssuer(t, "s3cret")
	good, _, err := iss.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	r := gin.New()
	r.GET("/admin", auth.RequireAdmin(iss), func(c *gin.Context) {
		c.String(http.StatusOK, auth.ClaimsFromCtx(c).Subject)
	})
	r.GET("/open", auth.OptionalAdmin(iss), func(c *gin.Context) {
		if auth.ClaimsFromCtx(c) == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, "admin")
	})

	tests := []struct {
		path, header string
		wantCode     int
		wantBody     string
	}{
		{"/admin", "", http.StatusUnauthorized, ""},
		{"/admin", "Bearer junk", http.StatusUnauthorized, ""},
		{"/admin", "Basic abc", http.StatusUnauthorized, ""},
		{"/admin", "Bearer " + good, http.StatusOK, "admin"},
		{"/open", "", http.StatusOK, "anonymous"},
		{"/open", "Bearer junk", http.StatusOK, "anonymous"},
		{"/open", "Bearer " + good, http.StatusOK, "admin"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tt.wantCode {
			t.Errorf("%s %q: status = %d, want %d", tt.path, tt.header, w.Code, tt.wantCode)
		}
		if tt.wantBody != "" && w.Body.String() != tt.wantBody {
			t.Errorf("%s %q: body = %q, want %q", tt.path, tt.header, w.Body.String(), tt.wantBody)
		}
	}
}

func TestVerify_emptyKey(t *testing.T) {
	signer := auth.NewIssuer([]byte("k"), "iss", time.Hour, "")
	tok, _, err := signer.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	keyless := auth.NewIssuer(nil, "iss", time.Hour, "")
	if _, err := keyless.Verify(tok); err == nil {
		t.Fatal("issuer without a signing key must reject every token")
	}
}
