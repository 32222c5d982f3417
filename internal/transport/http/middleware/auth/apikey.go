// Package auth implements API key authentication for client requests.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/quillway/quillway/internal/storage"
	"github.com/quillway/quillway/internal/types"
)

// AccountContextKey is the context key for the authenticated account.
type AccountContextKey struct{}

// CachedAccount holds a validated account for the auth cache.
type CachedAccount struct {
	Account    *storage.Account
	ValidUntil time.Time
}

// cacheTTL bounds how long a verified key skips the argon2 check.
const cacheTTL = 5 * time.Minute

// NewCache builds the ristretto cache used by APIKeyAuth.
func NewCache() (*ristretto.Cache[string, *CachedAccount], error) {
	return ristretto.NewCache(&ristretto.Config[string, *CachedAccount]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
}

// APIKeyAuth authenticates requests with Quillway API keys. Only keys with
// the qw_ prefix are accepted; the key is verified against the stored argon2
// hash, with a short-lived cache in front of the store.
func APIKeyAuth(store storage.AccountStore, cache *ristretto.Cache[string, *CachedAccount]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeUnauthorized(w, "API key required")
				return
			}
			apiKey := strings.TrimPrefix(header, "Bearer ")

			if !strings.HasPrefix(apiKey, storage.APIKeyPrefix) {
				writeUnauthorized(w, "only Quillway API keys (qw_*) are accepted")
				return
			}

			prefix := storage.ExtractKeyPrefix(apiKey)
			cacheKey := "apikey:" + prefix

			if cache != nil {
				if cached, found := cache.Get(cacheKey); found {
					if time.Now().Before(cached.ValidUntil) {
						if ok, _ := storage.VerifyKey(apiKey, cached.Account.KeyHash); ok && cached.Account.IsActive {
							next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), cached.Account)))
							return
						}
					}
				}
			}

			accounts, err := store.GetAccountsByKeyPrefix(prefix)
			if err != nil || len(accounts) == 0 {
				writeUnauthorized(w, "invalid API key")
				return
			}

			var match *storage.Account
			for _, a := range accounts {
				if ok, _ := storage.VerifyKey(apiKey, a.KeyHash); ok {
					match = a
					break
				}
			}
			if match == nil || !match.IsActive {
				writeUnauthorized(w, "invalid or inactive API key")
				return
			}

			if cache != nil {
				cache.Set(cacheKey, &CachedAccount{
					Account:    match,
					ValidUntil: time.Now().Add(cacheTTL),
				}, 1)
			}

			next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), match)))
		})
	}
}

func withAccount(ctx context.Context, a *storage.Account) context.Context {
	return context.WithValue(ctx, AccountContextKey{}, a)
}

// GetAccount retrieves the authenticated account from context.
func GetAccount(ctx context.Context) *storage.Account {
	if a, ok := ctx.Value(AccountContextKey{}).(*storage.Account); ok {
		return a
	}
	return nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	types.WriteError(w, http.StatusUnauthorized, types.ErrAuthentication(message))
}
