package detector

import (
	"math"
	"sync"
	"time"
)

// ServiceBaseline is a running latency profile for one service.
// Updated incrementally using Welford's online algorithm for mean/variance.
type ServiceBaseline struct {
	Service    string    `json:"service"`
	Count      int       `json:"count"`
	MeanMs     float64   `json:"mean_ms"`
	M2         float64   `json:"m2"`
	LastUpdate time.Time `json:"last_update"`
}

// Stddev returns the standard deviation of observed latency.
func (b *ServiceBaseline) Stddev() float64 {
	if b.Count < 2 {
		return 0
	}
	return math.Sqrt(b.M2 / float64(b.Count-1))
}

func (b *ServiceBaseline) observe(latencyMs float64, now time.Time) {
	b.Count++
	delta := latencyMs - b.MeanMs
	b.MeanMs += delta / float64(b.Count)
	delta2 := latencyMs - b.MeanMs
	b.M2 += delta * delta2
	b.LastUpdate = now
}

// baselines tracks per-service latency profiles.
type baselines struct {
	mu       sync.RWMutex
	services map[string]*ServiceBaseline
	expiry   time.Duration
}

func newBaselines(expiry time.Duration) *baselines {
	return &baselines{services: make(map[string]*ServiceBaseline), expiry: expiry}
}

// mean returns the learned baseline for service if at least minSamples
// observations exist.
func (b *baselines) mean(service string, minSamples int) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.services[service]
	if !ok || p.Count < minSamples {
		return 0, false
	}
	return p.MeanMs, true
}

func (b *baselines) observe(service string, latencyMs float64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.services[service]
	if !ok {
		p = &ServiceBaseline{Service: service}
		b.services[service] = p
	}
	p.observe(latencyMs, now)
}

// cleanup drops profiles not updated within the expiry window.
func (b *baselines) cleanup(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := now.Add(-b.expiry)
	removed := 0
	for svc, p := range b.services {
		if p.LastUpdate.Before(cutoff) {
			delete(b.services, svc)
			removed++
		}
	}
	return removed
}

func (b *baselines) get(service string) (ServiceBaseline, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.services[service]
	if !ok {
		return ServiceBaseline{}, false
	}
	return *p, true
}
