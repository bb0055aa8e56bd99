package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/frontieralpha/cvrf/internal/database"
)

// SystemHandlers exposes process and database health endpoints
type SystemHandlers struct {
	databases   map[string]*database.DB
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(databases map[string]*database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		databases:   databases,
		startupTime: time.Now(),
		log:         log.With().Str("component", "system_handlers").Logger(),
	}
}

// DatabaseHealth reports one database's health and size
type DatabaseHealth struct {
	Healthy      bool   `json:"healthy"`
	Error        string `json:"error,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
	WALSizeBytes int64  `json:"wal_size_bytes"`
}

// HealthResponse is the system health payload
type HealthResponse struct {
	Status        string                    `json:"status"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
	CPUPercent    float64                   `json:"cpu_percent"`
	MemoryPercent float64                   `json:"memory_percent"`
	Databases     map[string]DatabaseHealth `json:"databases"`
}

// HandleHealth reports process stats and per-database health
// GET /api/system/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cpuAvg, memPercent := h.getSystemStats()

	response := HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuAvg,
		MemoryPercent: memPercent,
		Databases:     make(map[string]DatabaseHealth, len(h.databases)),
	}

	for name, db := range h.databases {
		health := DatabaseHealth{Healthy: true}

		if err := db.HealthCheck(ctx); err != nil {
			health.Healthy = false
			health.Error = err.Error()
			response.Status = "degraded"
		}

		if stats, err := db.GetStats(); err == nil {
			health.SizeBytes = stats.SizeBytes
			health.WALSizeBytes = stats.WALSizeBytes
		}

		response.Databases[name] = health
	}

	status := http.StatusOK
	if response.Status != "ok" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// getSystemStats samples CPU and memory usage. CPU is sampled over 100ms to
// keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
