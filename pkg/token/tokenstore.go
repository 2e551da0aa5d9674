package tokenstore

import (
	"sync"
	"time"
)

// Revoked session ids live in memory until their token would have expired
// anyway. Restarting the server forgets them; sessions last one day.
var (
	mu            sync.RWMutex
	revokedTokens = map[string]time.Time{}
)

// RevokeToken blocks jti until exp. A zero exp keeps it for a day.
func RevokeToken(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	if exp.IsZero() {
		exp = time.Now().Add(24 * time.Hour)
	}
	mu.Lock()
	defer mu.Unlock()
	revokedTokens[jti] = exp
}

func IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	exp, ok := revokedTokens[jti]
	return ok && time.Now().Before(exp)
}

// Prune drops entries whose token has expired and returns how many went.
func Prune(now time.Time) int {
	mu.Lock()
	defer mu.Unlock()
	n := 0
	for jti, exp := range revokedTokens {
		if !now.Before(exp) {
			delete(revokedTokens, jti)
			n++
		}
	}
	return n
}

func Len() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(revokedTokens)
}
