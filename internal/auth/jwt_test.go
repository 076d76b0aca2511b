package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret-key"

func sign(t *testing.T, userID int64, expires time.Time) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(expires.Add(-15 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestSessionUserID_Unverified(t *testing.T) {
	tr := NewTokenReader("")
	if tr.Verifies() {
		t.Fatal("reader without secret claims to verify")
	}

	id, err := tr.SessionUserID(sign(t, 42, time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("SessionUserID() error: %v", err)
	}
	if id != 42 {
		t.Errorf("UserID = %d, want 42", id)
	}
}

func TestSessionUserID_Verified(t *testing.T) {
	tr := NewTokenReader(testSecret)

	id, err := tr.SessionUserID(sign(t, 7, time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("SessionUserID() error: %v", err)
	}
	if id != 7 {
		t.Errorf("UserID = %d, want 7", id)
	}

	other := NewTokenReader("another-secret")
	if _, err := other.SessionUserID(sign(t, 7, time.Now().Add(time.Hour))); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: err = %v, want ErrInvalidToken", err)
	}
}

func TestSessionUserID_Expired(t *testing.T) {
	token := sign(t, 1, time.Now().Add(-time.Second))

	for _, tr := range []*TokenReader{NewTokenReader(""), NewTokenReader(testSecret)} {
		if _, err := tr.SessionUserID(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("verifies=%v: err = %v, want ErrInvalidToken", tr.Verifies(), err)
		}
	}
}

func TestSessionUserID_RejectTamperedToken(t *testing.T) {
	tr := NewTokenReader(testSecret)
	token := sign(t, 1, time.Now().Add(time.Hour))

	// Change a character mid-signature; the last base64url character carries
	// padding bits the decoder ignores.
	sigStart := strings.LastIndex(token, ".") + 1
	mid := sigStart + (len(token)-sigStart)/2
	b := token[mid]
	if b == 'A' {
		b = 'B'
	} else {
		b = 'A'
	}
	tampered := token[:mid] + string(b) + token[mid+1:]

	if _, err := tr.SessionUserID(tampered); err == nil {
		t.Error("SessionUserID() should reject tampered token")
	}
}

func TestSessionUserID_RejectNoneSigningMethod(t *testing.T) {
	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing with none: %v", err)
	}

	if _, err := NewTokenReader(testSecret).SessionUserID(tokenString); err == nil {
		t.Error("SessionUserID() should reject token with 'none' signing method")
	}
}

func TestSessionUserID_Garbage(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := NewTokenReader("").SessionUserID(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("SessionUserID(%q) err = %v", tok, err)
		}
	}
}

func TestSessionUserID_MissingUser(t *testing.T) {
	if _, err := NewTokenReader("").SessionUserID(sign(t, 0, time.Now().Add(time.Hour))); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	var seen int64
	h := Middleware(func() int64 { return 9 })(func(c echo.Context) error {
		seen = GetUserID(c)
		return nil
	})
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if seen != 9 {
		t.Errorf("GetUserID = %d, want 9", seen)
	}
}

func TestIssueToken_RoundTrip(t *testing.T) {
	token, err := IssueToken("dev-secret", 42, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	got, err := NewTokenReader("dev-secret").SessionUserID(token)
	if err != nil || got != 42 {
		t.Errorf("SessionUserID = %d, %v; want 42", got, err)
	}
	if _, err := NewTokenReader("other-secret").SessionUserID(token); err == nil {
		t.Error("token verified with the wrong secret")
	}
	if _, err := IssueToken("", 42, time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}
