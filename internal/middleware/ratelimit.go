package middleware

import (
	"context"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tush00nka/phonechat/internal/pkg/httputils"
)

var limiterScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals)
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

type RateLimitOptions struct {
	Enabled  bool
	Capacity int
	Refill   time.Duration
	Prefix   string
	// TrustedProxies are the peers whose X-Forwarded-For / X-Real-IP headers are honoured.
	TrustedProxies []netip.Prefix
}

// Decision is the outcome of one bucket check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter is a token bucket per key kept in Redis.
type Limiter struct {
	rdb  *redis.Client
	opts RateLimitOptions
	ttl  int64
}

// NewLimiter returns nil when limiting is disabled or rdb is nil. A nil
// Limiter allows everything.
func NewLimiter(rdb *redis.Client, opts RateLimitOptions) *Limiter {
	if !opts.Enabled || rdb == nil || opts.Capacity <= 0 {
		return nil
	}

	ttl := int64(opts.Refill/time.Second) * int64(opts.Capacity)
	if ttl < 60 {
		ttl = 60
	}
	return &Limiter{rdb: rdb, opts: opts, ttl: ttl}
}

// Allow takes one token from the bucket of id.
func (l *Limiter) Allow(ctx context.Context, id string) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", l.opts.Prefix, id)
	vals, err := limiterScript.Run(ctx, l.rdb, []string{key},
		time.Now().UnixMilli(),
		l.opts.Capacity,
		l.opts.Refill.Milliseconds(),
		l.ttl,
	).Int64Slice()
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(vals) != 3 {
		return Decision{Allowed: true}, fmt.Errorf("rate limit %s: unexpected reply %v", key, vals)
	}

	return Decision{
		Allowed:    vals[0] == 1,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// Check runs Allow and writes the rate limit headers. On rejection it also
// writes the 429 response and returns false. Redis failures let the request through.
func (l *Limiter) Check(w http.ResponseWriter, r *http.Request, id string) bool {
	if l == nil {
		return true
	}

	d, err := l.Allow(r.Context(), id)
	if err != nil {
		log.Printf("[ratelimit] %v", err)
		return true
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.opts.Capacity))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

	if !d.Allowed {
		secs := int(math.Ceil(d.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		httputils.ResponseError(w, http.StatusTooManyRequests, "Too many requests, try again later")
		return false
	}
	return true
}

// RateLimit is a per client IP token bucket. It lets every request through
// when disabled, when rdb is nil, or when Redis fails.
func RateLimit(rdb *redis.Client, opts RateLimitOptions) func(http.HandlerFunc) http.HandlerFunc {
	limiter := NewLimiter(rdb, opts)
	if limiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Check(w, r, clientIP(r, opts.TrustedProxies)) {
				return
			}
			next(w, r)
		}
	}
}

// ParseTrustedProxies accepts plain addresses and CIDR prefixes.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, e := range entries {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// clientIP uses the TCP peer unless that peer is a trusted proxy, in which
// case the nearest untrusted X-Forwarded-For hop wins.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			host = hop
			if !isTrusted(hop, trusted) {
				break
			}
		}
		return host
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return host
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
