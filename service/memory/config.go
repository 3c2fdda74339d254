package memory

import (
	"fmt"
	"time"
)

// PoolConfig describes a statically configured frame pool
type PoolConfig struct {
	Name string `json:"name" yaml:"name"`
	// Categories lists the process categories routed to this pool
	Categories []string `json:"categories" yaml:"categories"`
	// Quota is the fraction of all frames owned by the pool
	Quota float64 `json:"quota,omitempty" yaml:"quota,omitempty"`
	// Frames overrides Quota with an explicit frame count
	Frames int `json:"frames,omitempty" yaml:"frames,omitempty"`
	// Tier selects the access latency, 1 is the fastest
	Tier int `json:"tier" yaml:"tier"`
	// Pinned pools are exempt from swapping
	Pinned bool `json:"pinned,omitempty" yaml:"pinned,omitempty"`
}

// Config represents memory manager configuration
type Config struct {
	TotalSize   int64                 `json:"totalSize" yaml:"totalSize"`
	PageSize    int                   `json:"pageSize" yaml:"pageSize"`
	Pools       []PoolConfig          `json:"pools" yaml:"pools"`
	TierLatency map[int]time.Duration `json:"tierLatency" yaml:"tierLatency"`
	SwapLatency time.Duration         `json:"swapLatency" yaml:"swapLatency"`
}

// DefaultConfig returns a 64MiB node with one pool per category
func DefaultConfig() Config {
	return Config{
		TotalSize: 64 << 20,
		PageSize:  4096,
		Pools: []PoolConfig{
			{Name: "system", Categories: []string{"SYSTEM"}, Quota: 0.05, Tier: 1, Pinned: true},
			{Name: "interactive", Categories: []string{"INTERACTIVE"}, Quota: 0.15, Tier: 1},
			{Name: "compute", Categories: []string{"COMPUTE"}, Quota: 0.30, Tier: 1},
			{Name: "consensus", Categories: []string{"CONSENSUS"}, Quota: 0.15, Tier: 2, Pinned: true},
			{Name: "network", Categories: []string{"NETWORK"}, Quota: 0.10, Tier: 1},
			{Name: "user", Categories: []string{"USER"}, Quota: 0.25, Tier: 3},
		},
		TierLatency: map[int]time.Duration{
			1: time.Microsecond,
			2: 5 * time.Microsecond,
			3: 10 * time.Microsecond,
		},
		SwapLatency: time.Millisecond,
	}
}

// FrameCount returns the number of physical frames
func (c *Config) FrameCount() int {
	if c.PageSize <= 0 {
		return 0
	}
	return int(c.TotalSize / int64(c.PageSize))
}

// poolFrames resolves the frame count of a pool
func (c *Config) poolFrames(pool *PoolConfig) int {
	if pool.Frames > 0 {
		return pool.Frames
	}
	return int(pool.Quota * float64(c.FrameCount()))
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("memory.pageSize must be > 0")
	}
	if c.TotalSize < int64(c.PageSize) {
		return fmt.Errorf("memory.totalSize must hold at least one page")
	}
	if len(c.Pools) == 0 {
		return fmt.Errorf("memory.pools must not be empty")
	}
	total := 0
	names := map[string]bool{}
	categories := map[string]string{}
	for i := range c.Pools {
		pool := &c.Pools[i]
		if pool.Name == "" {
			return fmt.Errorf("memory.pools[%d].name is required", i)
		}
		if names[pool.Name] {
			return fmt.Errorf("memory.pools[%d]: duplicate pool %q", i, pool.Name)
		}
		names[pool.Name] = true
		if pool.Frames == 0 && (pool.Quota <= 0 || pool.Quota > 1) {
			return fmt.Errorf("memory.pools[%d].quota must be in (0,1]", i)
		}
		if _, ok := c.TierLatency[pool.Tier]; !ok {
			return fmt.Errorf("memory.pools[%d]: no latency for tier %d", i, pool.Tier)
		}
		for _, category := range pool.Categories {
			if owner, ok := categories[category]; ok {
				return fmt.Errorf("memory.pools[%d]: category %s already served by %s", i, category, owner)
			}
			categories[category] = pool.Name
		}
		frames := c.poolFrames(pool)
		if frames <= 0 {
			return fmt.Errorf("memory.pools[%d]: pool %q has no frames", i, pool.Name)
		}
		total += frames
	}
	if total > c.FrameCount() {
		return fmt.Errorf("memory.pools reserve %d frames, only %d available", total, c.FrameCount())
	}
	for tier, latency := range c.TierLatency {
		if c.SwapLatency <= latency {
			return fmt.Errorf("memory.swapLatency must exceed tier %d latency", tier)
		}
	}
	return nil
}
