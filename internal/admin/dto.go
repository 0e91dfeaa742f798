// AngelaMos | 2026
// dto.go

package admin

type SystemStatsResponse struct {
	Dependencies []DependencyStatus `json:"dependencies"`
	Pools        PoolStats          `json:"pools"`
	Schema       *SchemaStatus      `json:"schema,omitempty"`
	AuditBroker  *BrokerStatus      `json:"audit_broker,omitempty"`
	Runtime      RuntimeStats       `json:"runtime"`
}

type DependencyStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

type PoolStats struct {
	Database *DBPoolStats    `json:"database,omitempty"`
	Redis    *RedisPoolStats `json:"redis,omitempty"`
}

type DBPoolStats struct {
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type SchemaStatus struct {
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
	Error   string `json:"error,omitempty"`
}

// BrokerStatus counts audit events lost on the way to RabbitMQ.
type BrokerStatus struct {
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	Uptime       string `json:"uptime"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	HeapAlloc    uint64 `json:"heap_alloc_bytes"`
	NumGC        uint32 `json:"num_gc"`
}

type CachePurgeResponse struct {
	Purged int `json:"purged"`
}
