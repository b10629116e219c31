package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is an in-memory stand-in for the handful of commands the services
// issue: GET, SET with expiry, DEL and EXISTS. Any other command panics
// through the nil embedded Cmdable.
type Redis struct {
	redis.Cmdable

	mu      sync.Mutex
	vals    map[string]string
	expires map[string]time.Time
	Now     func() time.Time
}

func NewRedis() *Redis {
	return &Redis{vals: map[string]string{}, expires: map[string]time.Time{}}
}

func (r *Redis) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// live reports whether key holds an unexpired value. Caller holds mu.
func (r *Redis) live(key string) bool {
	if _, ok := r.vals[key]; !ok {
		return false
	}
	if at, ok := r.expires[key]; ok && !r.now().Before(at) {
		delete(r.vals, key)
		delete(r.expires, key)
		return false
	}
	return true
}

func (r *Redis) Get(_ context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live(key) {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(r.vals[key], nil)
}

func (r *Redis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	var v string
	switch x := value.(type) {
	case string:
		v = x
	case []byte:
		v = string(x)
	default:
		v = fmt.Sprint(x)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vals[key] = v
	delete(r.expires, key)
	if expiration > 0 {
		r.expires[key] = r.now().Add(expiration)
	}
	return redis.NewStatusResult("OK", nil)
}

func (r *Redis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, k := range keys {
		if r.live(k) {
			n++
		}
		delete(r.vals, k)
		delete(r.expires, k)
	}
	return redis.NewIntResult(n, nil)
}

func (r *Redis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, k := range keys {
		if r.live(k) {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// Stored lists the live keys, for assertions.
func (r *Redis) Stored() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for k := range r.vals {
		if r.live(k) {
			out = append(out, k)
		}
	}
	return out
}
