package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

var (
	rlMu     sync.Mutex
	visitors = map[string]*visitor{}
	window   = 10 * time.Second
	capacity = 5

	dupMu   sync.Mutex
	lastMsg = map[string]struct {
		text string
		ts   time.Time
	}{}
	dupTTL = 45 * time.Second

	cgMu     sync.Mutex
	userSem  = map[string]chan struct{}{}
	userConc = 2
)

const maxVisitors = 10000

// SetRateLimitConfig lets capacity requests through per window for each
// admin and IP, and caps concurrent slots per admin at conc.
func SetRateLimitConfig(win time.Duration, cap, conc int) {
	rlMu.Lock()
	window = win
	capacity = max(cap, 1)
	visitors = map[string]*visitor{}
	rlMu.Unlock()
	cgMu.Lock()
	userConc = max(conc, 1)
	userSem = map[string]chan struct{}{}
	cgMu.Unlock()
}

func SetDuplicateTTL(ttl time.Duration) {
	dupMu.Lock()
	dupTTL = ttl
	dupMu.Unlock()
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

func userKey(c *gin.Context) string {
	return CurrentUserID(c) + "@" + clientIP(c)
}

func limiterFor(key string, now time.Time) *rate.Limiter {
	rlMu.Lock()
	defer rlMu.Unlock()
	v := visitors[key]
	if v == nil {
		if len(visitors) >= maxVisitors {
			for k, old := range visitors {
				if now.Sub(old.lastSeen) > window {
					delete(visitors, k)
				}
			}
		}
		every := rate.Every(window / time.Duration(capacity))
		v = &visitor{lim: rate.NewLimiter(every, capacity)}
		visitors[key] = v
	}
	v.lastSeen = now
	return v.lim
}

// RateLimit throttles outbound-relay endpoints per admin, IP and scope.
func RateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		lim := limiterFor(scope+"|"+userKey(c), now)
		r := lim.ReserveN(now, 1)
		if !r.OK() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		if d := r.DelayFrom(now); d > 0 {
			r.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		c.Next()
	}
}

// IsDuplicate reports whether key already sent the same text within the TTL.
// It only reads; RememberSent records a send once it succeeded.
func IsDuplicate(key string, text string) bool {
	text = strings.TrimSpace(text)
	dupMu.Lock()
	defer dupMu.Unlock()
	entry, ok := lastMsg[key]
	return ok && entry.text == text && time.Since(entry.ts) < dupTTL
}

func RememberSent(key string, text string) {
	dupMu.Lock()
	defer dupMu.Unlock()
	lastMsg[key] = struct {
		text string
		ts   time.Time
	}{text: strings.TrimSpace(text), ts: time.Now()}
}

func semFor(uid string) chan struct{} {
	cgMu.Lock()
	defer cgMu.Unlock()
	sem := userSem[uid]
	if sem == nil {
		sem = make(chan struct{}, userConc)
		userSem[uid] = sem
	}
	return sem
}

// TryAcquireSlot takes one of uid's concurrency slots without waiting.
func TryAcquireSlot(uid string) (release func(), ok bool) {
	sem := semFor(uid)
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, true
	default:
		return nil, false
	}
}
