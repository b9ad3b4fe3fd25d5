package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/carpool-driver/internal/models"
)

var (
	errInvalidToken = errors.New("invalid token")
	errExpiredToken = errors.New("token has expired")
)

// Tokens issues and checks the HS256 bearer tokens handed out at login.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(driverID int64) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(driverID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify returns the driver id the token was issued to.
func (t *Tokens) Verify(raw string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, errExpiredToken
		}
		return 0, errInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, errInvalidToken
	}
	return id, nil
}

type driverKey struct{}

func driverFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(driverKey{}).(int64)
	return id
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireDriver rejects requests without a valid token for a known driver.
func (s *Server) requireDriver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		id, err := s.tokens.Verify(raw)
		if err != nil || !s.store.DriverExists(id) {
			writeError(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		infoFrom(r.Context()).driverID = id
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), driverKey{}, id)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !s.decodeValid(w, r, &creds) {
		return
	}
	profile, hash, ok := s.store.DriverByPhone(strings.TrimSpace(creds.Phone))
	if !ok || !checkPassword(hash, creds.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid phone number or password.")
		return
	}
	token, err := s.tokens.Issue(profile.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Login successful.", models.LoginResult{Token: token, User: &profile})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	if !s.decodeValid(w, r, &reg) {
		return
	}
	hash, err := hashPassword(reg.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p := models.Profile{
		Name:          strings.TrimSpace(reg.Name),
		Phone:         strings.TrimSpace(reg.Phone),
		VehicleModel:  reg.VehicleModel,
		VehicleNumber: reg.VehicleNumber,
		LicenseNumber: reg.LicenseNumber,
	}
	if reg.Email != nil {
		p.Email = *reg.Email
	}
	profile, err := s.store.AddDriver(p, hash)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.tokens.Issue(profile.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Registration successful.", models.LoginResult{Token: token, User: &profile})
}
