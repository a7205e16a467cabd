package stats

import (
	"sync/atomic"
	"time"
)

// Collector は配信の集計カウンタ
type Collector struct {
	startTime time.Time

	totalConns    atomic.Int64
	activeConns   atomic.Int64
	totalRequests atomic.Int64
	responses2xx  atomic.Int64
	responses4xx  atomic.Int64
	responses5xx  atomic.Int64
	bytesSent     atomic.Int64
}

// New は集計を開始する
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ConnOpened は接続の受け入れを記録する
func (c *Collector) ConnOpened() {
	c.totalConns.Add(1)
	c.activeConns.Add(1)
}

// ConnClosed は接続の終了を記録する
func (c *Collector) ConnClosed() {
	c.activeConns.Add(-1)
}

// ResponseSent は送信した応答を記録する
func (c *Collector) ResponseSent(status int, bytes int64) {
	c.totalRequests.Add(1)
	c.bytesSent.Add(bytes)
	switch status / 100 {
	case 2:
		c.responses2xx.Add(1)
	case 4:
		c.responses4xx.Add(1)
	case 5:
		c.responses5xx.Add(1)
	}
}

// Snapshot は集計値のある時点の写し
type Snapshot struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	ActiveConns   int64 `json:"active_connections"`
	TotalConns    int64 `json:"total_connections"`
	TotalRequests int64 `json:"total_requests"`
	Responses2xx  int64 `json:"responses_2xx"`
	Responses4xx  int64 `json:"responses_4xx"`
	Responses5xx  int64 `json:"responses_5xx"`
	BytesSent     int64 `json:"bytes_sent"`
}

// Snapshot は現在の集計値を写し取る
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
		ActiveConns:   c.activeConns.Load(),
		TotalConns:    c.totalConns.Load(),
		TotalRequests: c.totalRequests.Load(),
		Responses2xx:  c.responses2xx.Load(),
		Responses4xx:  c.responses4xx.Load(),
		Responses5xx:  c.responses5xx.Load(),
		BytesSent:     c.bytesSent.Load(),
	}
}
