package models

import "time"

// MetricsSnapshot aggregates runtime counters for the metrics endpoint.
type MetricsSnapshot struct {
	FilesIngested            uint64    `json:"files_ingested"`
	ParseDegradations        uint64    `json:"parse_degradations"`
	RegistersBuilt           uint64    `json:"registers_built"`
	TruncatedParticipants    uint64    `json:"truncated_participants"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
