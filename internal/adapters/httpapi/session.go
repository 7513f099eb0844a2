package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	sessionCookieName = "vetra_session"
	sessionTTL        = 24 * time.Hour
)

var errNoSession = errors.New("no valid session")

// sessionManager signs and verifies the registration session cookie.
// The cookie value is base64url(email|expiry-unix) "." hex(HMAC-SHA256),
// so the server stays stateless and the cookie cannot be forged without
// the signing secret.
type sessionManager struct {
	secret []byte
	now    func() time.Time
}

func newSessionManager(secret []byte) *sessionManager {
	return &sessionManager{secret: secret, now: time.Now}
}

func (m *sessionManager) issue(w http.ResponseWriter, email string) {
	expiry := m.now().UTC().Add(sessionTTL)
	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(fmt.Sprintf("%s|%d", email, expiry.Unix())))
	value := payload + "." + m.sign(payload)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// verify returns the session email, or errNoSession for a missing,
// malformed, mis-signed or expired cookie.
func (m *sessionManager) verify(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", errNoSession
	}

	payload, sig, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return "", errNoSession
	}
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return "", errNoSession
	}
	actual, err := hex.DecodeString(m.sign(payload))
	if err != nil || !hmac.Equal(expected, actual) {
		return "", errNoSession
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", errNoSession
	}
	email, rawExpiry, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return "", errNoSession
	}
	expiry, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil || m.now().UTC().After(time.Unix(expiry, 0)) {
		return "", errNoSession
	}
	return email, nil
}

func (m *sessionManager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
