package metrics

import (
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
)

var (
	mu           sync.RWMutex
	statsDClient statsd.ClientInterface = &statsd.NoOpClient{}

	// by default full sampling
	samplingRate = 1.0
)

// InitMetrics points the package at a StatsD agent. An empty address keeps
// the no-op client.
func InitMetrics(addr string, rate float64, globalTags []string) error {
	if addr == "" {
		return nil
	}
	client, err := statsd.New(addr, statsd.WithTags(globalTags))
	if err != nil {
		return err
	}
	SetClient(client, rate)
	return nil
}

// SetClient swaps the client used by Timing and Count.
func SetClient(client statsd.ClientInterface, rate float64) {
	mu.Lock()
	defer mu.Unlock()
	statsDClient = client
	samplingRate = rate
}

// Close flushes and closes the current client.
func Close() error {
	mu.RLock()
	defer mu.RUnlock()
	return statsDClient.Close()
}

func Timing(name string, value time.Duration, tags []string) {
	mu.RLock()
	defer mu.RUnlock()
	if err := statsDClient.Timing(name, value, tags, samplingRate); err != nil {
		log.Warn().AnErr("error", err).Msg("Error occurred while doing statsd timing")
	}
}

func Count(name string, value int64, tags []string) {
	mu.RLock()
	defer mu.RUnlock()
	if err := statsDClient.Count(name, value, tags, samplingRate); err != nil {
		log.Warn().AnErr("error", err).Msg("Error occurred while doing statsd count")
	}
}
