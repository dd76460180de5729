package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-shared-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"empty", "", errMissingAuthorization},
		{"no scheme", "abc.def.ghi", errBadAuthorization},
		{"wrong scheme", "Basic abc.def.ghi", errBadAuthorization},
		{"lowercase scheme", "bearer abc.def.ghi", errBadAuthorization},
		{"not a jwt", "Bearer notajwt", errBadAuthorization},
		{"valid", "Bearer abc.def.ghi", nil},
		{"padded", "  Bearer abc.def.ghi  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := bearerToken(tt.header)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && token != "abc.def.ghi" {
				t.Fatalf("token = %q", token)
			}
		})
	}
}

func TestHS256AuthSubject(t *testing.T) {
	auth := NewHS256Auth(testSecret, "taskboard", "https://issuer.example/")

	now := time.Now()
	valid := jwt.MapClaims{
		"sub": "user-1",
		"aud": "taskboard",
		"iss": "https://issuer.example/",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}

	sub, err := auth.SubjectFromAuthHeader("Bearer " + signHS256(t, valid))
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("sub = %q", sub)
	}

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
	}{
		{"expired", func(c jwt.MapClaims) { c["exp"] = now.Add(-2 * time.Hour).Unix() }},
		{"missing sub", func(c jwt.MapClaims) { delete(c, "sub") }},
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "other" }},
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example/" }},
		{"not yet valid", func(c jwt.MapClaims) { c["nbf"] = now.Add(2 * time.Hour).Unix() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := jwt.MapClaims{}
			for k, v := range valid {
				claims[k] = v
			}
			tt.mutate(claims)
			if _, err := auth.SubjectFromAuthHeader("Bearer " + signHS256(t, claims)); err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestHS256AuthRejectsWrongSecret(t *testing.T) {
	auth := NewHS256Auth("other-secret", "", "")
	token := signHS256(t, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Hour).Unix()})
	if _, err := auth.SubjectFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("token signed with the wrong secret accepted")
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewHS256Auth(testSecret, "", "")
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("subject").(string))
	}, authMiddleware(auth))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status = %d", rec.Code)
	}

	token := signHS256(t, jwt.MapClaims{"sub": "user-9", "exp": time.Now().Add(time.Hour).Unix()})
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "user-9" {
		t.Fatalf("valid token: status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestNoAuthPassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/open", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, authMiddleware(NoAuth{}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
