package metrics

import (
	"time"
)

// MarkerSource reports the current per-subsystem block-number markers.
// pkg/storage's Reader satisfies this through a small adapter in
// cmd/papyrus, keeping this package free of a storage dependency.
type MarkerSource interface {
	Markers() (map[string]uint64, error)
}

// Collector periodically refreshes the marker gauges from a MarkerSource,
// so scrapes see current positions even when no writes are flowing.
type Collector struct {
	source   MarkerSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a collector polling source every interval; an
// interval of zero means every 15 seconds.
func NewCollector(source MarkerSource, interval time.Duration) *Collector {
	if interval == 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	markers, err := c.source.Markers()
	if err != nil {
		UpdateComponent("kv", false, err.Error())
		return
	}
	UpdateComponent("kv", true, "serving")
	for subsystem, block := range markers {
		MarkerBlockNumber.WithLabelValues(subsystem).Set(float64(block))
	}
}
