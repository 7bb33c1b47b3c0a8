package health

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is satisfied by *pgxpool.Pool and the in-memory store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db      Pinger
	redis   func() *redis.Client
	started time.Time
}

type HealthStatus struct {
	Status   string           `json:"status"`
	Database ComponentHealth  `json:"database"`
	Redis    *ComponentHealth `json:"redis,omitempty"`
	System   *SystemHealth    `json:"system,omitempty"`
	Uptime   string           `json:"uptime,omitempty"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

type SystemHealth struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    string  `json:"memory_used"`
	MemoryTotal   string  `json:"memory_total"`
	DiskPercent   float64 `json:"disk_percent"`
	DiskUsed      string  `json:"disk_used"`
	DiskTotal     string  `json:"disk_total"`
	Goroutines    int     `json:"goroutines"`
}

// NewHealthChecker builds a checker. redisClient may return nil when the
// cache is disabled.
func NewHealthChecker(db Pinger, redisClient func() *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient, started: time.Now()}
}

// CheckBasic pings the database and, when enabled, Redis. Redis being down
// degrades but does not fail readiness since the cache is optional.
func (h *HealthChecker) CheckBasic() HealthStatus {
	dbHealth := h.checkDatabase()

	status := "healthy"
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
	}

	result := HealthStatus{
		Status:   status,
		Database: dbHealth,
	}
	if h.redis != nil {
		if client := h.redis(); client != nil {
			rh := checkRedis(client)
			result.Redis = &rh
			if rh.Status != "healthy" && status == "healthy" {
				result.Status = "degraded"
			}
		}
	}
	return result
}

// CheckDetailed adds host resource usage.
func (h *HealthChecker) CheckDetailed() HealthStatus {
	status := h.CheckBasic()
	status.System = collectSystem()
	status.Uptime = time.Since(h.started).Round(time.Second).String()
	return status
}

func (h *HealthChecker) checkDatabase() ComponentHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	return component(err, time.Since(start))
}

func checkRedis(client *redis.Client) ComponentHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx).Err()
	return component(err, time.Since(start))
}

func component(err error, took time.Duration) ComponentHealth {
	status := "healthy"
	if err != nil {
		status = "unhealthy"
	}
	return ComponentHealth{Status: status, ResponseTime: took.Milliseconds()}
}

func collectSystem() *SystemHealth {
	s := &SystemHealth{Goroutines: runtime.NumGoroutine()}

	if cpuPercents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(cpuPercents) > 0 {
		s.CPUPercent = cpuPercents[0]
	}
	if memStats, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = memStats.UsedPercent
		s.MemoryUsed = formatBytes(memStats.Used)
		s.MemoryTotal = formatBytes(memStats.Total)
	}
	if diskStats, err := disk.Usage("/"); err == nil {
		s.DiskPercent = diskStats.UsedPercent
		s.DiskUsed = formatBytes(diskStats.Used)
		s.DiskTotal = formatBytes(diskStats.Total)
	}
	return s
}

func formatBytes(bytes uint64) string {
	gb := float64(bytes) / (1024 * 1024 * 1024)
	if gb < 1 {
		mb := float64(bytes) / (1024 * 1024)
		return fmt.Sprintf("%.1f MB", mb)
	}
	return fmt.Sprintf("%.1f GB", gb)
}
