package healthcheck

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// Periodically probes the relay's dependencies so /health answers from cache
// instead of hitting the database on every call.
type Checker struct {
	mu           sync.RWMutex
	probes       map[string]Probe
	names        []string
	healthStatus map[string]*Status
	interval     time.Duration
	timeout      time.Duration
	maxFailures  int
	stopChan     chan struct{}
	running      bool
}

// Holds health checker configuration
type Config struct {
	Probes      map[string]Probe
	Interval    time.Duration // How often to check (default: 10s)
	Timeout     time.Duration // Probe timeout (default: 5s)
	MaxFailures int           // Failures before marking unhealthy (default: 3)
}

func NewChecker(cfg *Config) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	checker := &Checker{
		probes:       cfg.Probes,
		healthStatus: make(map[string]*Status),
		interval:     cfg.Interval,
		timeout:      cfg.Timeout,
		maxFailures:  cfg.MaxFailures,
		stopChan:     make(chan struct{}),
	}

	for name := range cfg.Probes {
		checker.names = append(checker.names, name)
		checker.healthStatus[name] = &Status{
			Name:      name,
			IsHealthy: true, // Assume healthy initially
			LastCheck: time.Now(),
		}
	}
	sort.Strings(checker.names)

	return checker
}

// Begins periodic health checks
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	log.Printf("Starting health checks for %d dependencies (interval: %v)", len(c.probes), c.interval)

	// Run initial check immediately
	c.checkAll()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.checkAll()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stops the health checker
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
		log.Printf("Health checker stopped")
	}
}

// Probes every dependency concurrently
func (c *Checker) checkAll() {
	var wg sync.WaitGroup

	for name, probe := range c.probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			c.check(name, probe)
		}(name, probe)
	}

	wg.Wait()
}

func (c *Checker) check(name string, probe Probe) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := probe(ctx); err != nil {
		c.recordFailure(name, err)
		return
	}
	c.recordSuccess(name)
}

// Records a successful health check
func (c *Checker) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.healthStatus[name]
	status.LastCheck = time.Now()
	status.LastSuccess = status.LastCheck
	status.FailureCount = 0
	status.LastError = ""

	if !status.IsHealthy {
		log.Printf("Dependency %s is now healthy", name)
		status.IsHealthy = true
	}
}

// Records a failed health check
func (c *Checker) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.healthStatus[name]
	status.LastCheck = time.Now()
	status.LastFailure = status.LastCheck
	status.FailureCount++
	status.LastError = err.Error()

	if status.IsHealthy && status.FailureCount >= c.maxFailures {
		log.Printf("Dependency %s is now unhealthy (failures: %d): %v", name, status.FailureCount, err)
		status.IsHealthy = false
	}
}

// Returns health status of every dependency
func (c *Checker) GetAllStatus() map[string]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statusMap := make(map[string]Status, len(c.healthStatus))
	for name, status := range c.healthStatus {
		statusMap[name] = *status
	}

	return statusMap
}

// Returns the overall health status
func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthyCount := 0
	for _, name := range c.names {
		if c.healthStatus[name].IsHealthy {
			healthyCount++
		}
	}

	if len(c.names) > 0 && healthyCount == 0 {
		return Unhealthy
	}
	if healthyCount < len(c.names) {
		return Degraded
	}

	return Healthy
}
