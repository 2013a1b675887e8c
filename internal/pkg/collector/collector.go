// Package collector periodically reports runtime statistics to statsd.
package collector

import (
	"context"
	"runtime"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/benbjohnson/clock"
)

// Collector emits goroutine, memory and gc gauges on every tick.
type Collector struct {
	Interval time.Duration
	Clock    clock.Clock

	client statsd.ClientInterface
}

// New returns a Collector reporting through client every interval.
func New(client statsd.ClientInterface, interval time.Duration) *Collector {
	return &Collector{
		Interval: interval,
		Clock:    clock.New(),
		client:   client,
	}
}

// Run emits stats until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	tick := c.Clock.Ticker(c.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c.emitStats()
		}
	}
}

func (c *Collector) emitStats() {
	c.gauge("cpu.goroutines", uint64(runtime.NumGoroutine()))

	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)

	c.gauge("mem.alloc", m.Alloc)
	c.gauge("mem.sys", m.Sys)
	c.gauge("mem.heap.inuse", m.HeapInuse)
	c.gauge("mem.heap.objects", m.HeapObjects)
	c.gauge("mem.stack.inuse", m.StackInuse)
	c.gauge("mem.gc.pause_total", m.PauseTotalNs)
	c.gauge("mem.gc.count", uint64(m.NumGC))
}

func (c *Collector) gauge(key string, val uint64) {
	c.client.Gauge(key, float64(val), nil, 1.0)
}
