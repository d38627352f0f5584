package core

import (
	"fmt"
	"sync"
	"time"
)

// SessionStats は、ローカルAPIサーバーの起動中の統計情報を管理します。
type SessionStats struct {
	mu        sync.Mutex
	startTime time.Time
	requests  map[string]int // 操作名ごとの呼び出し回数
	failures  int
	lastError string
}

// StatsSnapshot は、SessionStats のある時点での複製です。
type StatsSnapshot struct {
	StartTime time.Time      `json:"start_time"`
	Uptime    string         `json:"uptime"`
	Requests  map[string]int `json:"requests"`
	Failures  int            `json:"failures"`
	LastError string         `json:"last_error,omitempty"`
	Summary   string         `json:"summary"`
}

// NewSessionStats は、現在時刻を起動時刻とするSessionStatsを生成します。
func NewSessionStats() *SessionStats {
	return &SessionStats{startTime: time.Now(), requests: make(map[string]int)}
}

// Record は、1回の操作の結果を記録します。
func (s *SessionStats) Record(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[op]++
	if err != nil {
		s.failures++
		s.lastError = err.Error()
	}
}

// Snapshot は、現在の統計情報の複製を返します。
func (s *SessionStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := make(map[string]int, len(s.requests))
	total := 0
	for k, v := range s.requests {
		requests[k] = v
		total += v
	}
	uptime := time.Since(s.startTime)
	return StatsSnapshot{
		StartTime: s.startTime,
		Uptime:    uptime.Truncate(time.Second).String(),
		Requests:  requests,
		Failures:  s.failures,
		LastError: s.lastError,
		Summary:   formatSessionInfo(uptime, total, s.failures),
	}
}

// formatSessionInfo は統計情報を1行の文字列にフォーマットします。
func formatSessionInfo(uptime time.Duration, total, failures int) string {
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60
	return fmt.Sprintf("起動: %dh%dm | リクエスト: %d | 失敗: %d", hours, minutes, total, failures)
}
