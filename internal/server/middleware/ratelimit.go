package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/taskkeeper/internal/server/handlers"
)

// RateLimiter представляет rate limiter на основе токен-бакета (token bucket).
// Бакет пополняется целиком раз в window.
type RateLimiter struct {
	buckets  map[string]*bucket
	now      func() time.Time
	cleanupC chan struct{}
	done     chan struct{}
	rate     int
	window   time.Duration
	mu       sync.Mutex
	stopOnce sync.Once
}

// bucket представляет bucket для конкретного IP
type bucket struct {
	lastRefill time.Time
	tokens     int
}

// NewRateLimiter создает новый rate limiter.
// rate - максимальное количество запросов за window.
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		now:      time.Now,
		cleanupC: make(chan struct{}),
		done:     make(chan struct{}),
		rate:     rate,
		window:   window,
	}

	go rl.cleanup()

	return rl
}

// cleanup периодически удаляет неактивные buckets
func (rl *RateLimiter) cleanup() {
	defer close(rl.done)

	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupOldBuckets()
		case <-rl.cleanupC:
			return
		}
	}
}

// cleanupOldBuckets удаляет buckets, которые не пополнялись дольше 2*window
func (rl *RateLimiter) cleanupOldBuckets() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) > rl.window*2 {
			delete(rl.buckets, key)
		}
	}
}

// Stop останавливает cleanup goroutine и дожидается ее выхода.
// Повторный вызов безопасен.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.cleanupC) })
	<-rl.done
}

// Stopped reports whether the cleanup goroutine has exited.
func (rl *RateLimiter) Stopped() bool {
	select {
	case <-rl.done:
		return true
	default:
		return false
	}
}

// Allow проверяет, разрешен ли запрос для ключа. Если нет, возвращает
// время до пополнения бакета.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.lastRefill) >= rl.window {
		b = &bucket{tokens: rl.rate, lastRefill: now}
		rl.buckets[key] = b
	}

	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}

	return false, b.lastRefill.Add(rl.window).Sub(now)
}

// PathRateLimit задает лимит для конкретного пути
type PathRateLimit struct {
	Path   string
	Rate   int
	Window time.Duration
}

// PathLimiter applies per-path limits keyed by client IP. Paths without a
// limit pass through.
type PathLimiter struct {
	logger     *slog.Logger
	limiters   map[string]*RateLimiter
	trustProxy bool
}

// NewPathLimiter создает limiter для списка путей.
// trustProxy включает доверие к X-Forwarded-For и X-Real-IP.
func NewPathLimiter(limits []PathRateLimit, trustProxy bool, logger *slog.Logger) *PathLimiter {
	pl := &PathLimiter{
		logger:     logger,
		limiters:   make(map[string]*RateLimiter, len(limits)),
		trustProxy: trustProxy,
	}
	for _, limit := range limits {
		if limit.Rate <= 0 || limit.Window <= 0 {
			continue
		}
		pl.limiters[limit.Path] = NewRateLimiter(limit.Rate, limit.Window)
	}
	return pl
}

// Middleware returns the http middleware.
func (pl *PathLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter, ok := pl.limiters[r.URL.Path]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r, pl.trustProxy)
		allowed, retryAfter := limiter.Allow(key)
		if !allowed {
			pl.logger.WarnContext(r.Context(), "Rate limit exceeded",
				slog.String("ip", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			handlers.WriteError(w, pl.logger, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Stop останавливает все cleanup goroutines
func (pl *PathLimiter) Stop() {
	for _, l := range pl.limiters {
		l.Stop()
	}
}

// Stopped reports whether every per-path limiter has been stopped.
func (pl *PathLimiter) Stopped() bool {
	for _, l := range pl.limiters {
		if !l.Stopped() {
			return false
		}
	}
	return true
}

// clientIP извлекает IP адрес клиента. Заголовки прокси учитываются
// только при trustProxy, иначе клиент мог бы подставить любой адрес.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
