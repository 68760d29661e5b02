package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultRefreshInterval is how often the JWKS is re-fetched.
const DefaultRefreshInterval = 24 * time.Hour

type Claims struct {
	jwt.RegisteredClaims
	GivenName   string   `json:"given_name"`
	FamilyName  string   `json:"family_name"`
	Email       string   `json:"email"`
	Picture     string   `json:"picture"`
	OrgCode     string   `json:"org_code"`
	Permissions []string `json:"permissions"`
}

// DisplayName returns the best human-readable name the token carries.
func (c *Claims) DisplayName() string {
	name := strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	if name != "" {
		return name
	}
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// Validator checks RS256 tokens against the issuer's published JWKS.
type Validator struct {
	issuer     string
	httpClient *http.Client

	mu    sync.RWMutex
	jwks  *JWKS
	cache map[string]*rsa.PublicKey
}

func NewValidator(issuerURL string, httpClient *http.Client) *Validator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Validator{
		issuer:     strings.TrimSuffix(issuerURL, "/"),
		httpClient: httpClient,
		cache:      make(map[string]*rsa.PublicKey),
	}
}

// Start fetches the JWKS once and then refreshes it every interval until ctx
// is cancelled. The first fetch must succeed.
func (v *Validator) Start(ctx context.Context, interval time.Duration) error {
	if err := v.Refresh(ctx); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := v.Refresh(ctx); err != nil {
					slog.Error("[AUTH] Error refreshing JWKS", "error", err)
				} else {
					slog.Info("[AUTH] JWKS refreshed successfully")
				}
			}
		}
	}()

	return nil
}

// Refresh re-fetches the key set and clears the parsed key cache.
func (v *Validator) Refresh(ctx context.Context) error {
	jwksURL := v.issuer + "/.well-known/jwks.json"

	slog.Debug("[AUTH] Fetching JWKS", "url", jwksURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build JWKS request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	v.mu.Lock()
	v.jwks = &jwks
	v.cache = make(map[string]*rsa.PublicKey)
	v.mu.Unlock()

	slog.Info("[AUTH] JWKS loaded", "keys", len(jwks.Keys))
	return nil
}

// ValidateToken parses and verifies a bearer token.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if tokenString == "" {
		return nil, errors.New("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid not found in token header")
		}

		return v.publicKey(kid)
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return claims, nil
}

func (v *Validator) publicKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	if key, ok := v.cache[kid]; ok {
		v.mu.RUnlock()
		return key, nil
	}
	jwks := v.jwks
	v.mu.RUnlock()

	if jwks == nil {
		return nil, errors.New("JWKS not initialized")
	}

	for _, jwk := range jwks.Keys {
		if jwk.Kid != kid {
			continue
		}
		key, err := jwkToPublicKey(jwk)
		if err != nil {
			return nil, err
		}

		v.mu.Lock()
		v.cache[kid] = key
		v.mu.Unlock()
		return key, nil
	}

	return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
}

func jwkToPublicKey(jwk JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var e int
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

// ExtractTokenFromRequest reads the token from the query string or the
// Authorization header.
func ExtractTokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
