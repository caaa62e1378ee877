package utils

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// BenchmarkRunner provides utilities for running benchmarks with metrics collection
type BenchmarkRunner struct {
	startTime      time.Time
	endTime        time.Time
	memStatsStart  runtime.MemStats
	memStatsEnd    runtime.MemStats
	goroutineStart int
	goroutineEnd   int

	operationCount int64
	errorCount     int64

	mu sync.RWMutex
}

// NewBenchmarkRunner creates a new benchmark runner
func NewBenchmarkRunner() *BenchmarkRunner {
	return &BenchmarkRunner{}
}

// Start begins the benchmark measurement
func (br *BenchmarkRunner) Start() {
	br.mu.Lock()
	defer br.mu.Unlock()

	br.startTime = time.Now()
	br.goroutineStart = runtime.NumGoroutine()

	runtime.GC()
	runtime.ReadMemStats(&br.memStatsStart)
}

// Stop ends the benchmark measurement
func (br *BenchmarkRunner) Stop() {
	br.mu.Lock()
	defer br.mu.Unlock()

	br.endTime = time.Now()
	br.goroutineEnd = runtime.NumGoroutine()

	runtime.GC()
	runtime.ReadMemStats(&br.memStatsEnd)
}

// IncrementOperations increments the operation counter
func (br *BenchmarkRunner) IncrementOperations(count int64) {
	atomic.AddInt64(&br.operationCount, count)
}

// IncrementErrors increments the error counter
func (br *BenchmarkRunner) IncrementErrors(count int64) {
	atomic.AddInt64(&br.errorCount, count)
}

// GetResults returns the benchmark results
func (br *BenchmarkRunner) GetResults() *BenchmarkResults {
	br.mu.RLock()
	defer br.mu.RUnlock()

	duration := br.endTime.Sub(br.startTime)
	operations := atomic.LoadInt64(&br.operationCount)

	var opsPerSecond float64
	if duration.Seconds() > 0 {
		opsPerSecond = float64(operations) / duration.Seconds()
	}

	return &BenchmarkResults{
		Duration:            duration,
		Operations:          operations,
		Errors:              atomic.LoadInt64(&br.errorCount),
		OperationsPerSecond: opsPerSecond,
		MemoryAllocated:     br.memStatsEnd.TotalAlloc - br.memStatsStart.TotalAlloc,
		MemoryAllocations:   br.memStatsEnd.Mallocs - br.memStatsStart.Mallocs,
		GoroutineLeak:       br.goroutineEnd - br.goroutineStart,
	}
}

// BenchmarkResults holds the results of a benchmark run
type BenchmarkResults struct {
	Duration            time.Duration `json:"duration_ns"`
	Operations          int64         `json:"operations"`
	Errors              int64         `json:"errors"`
	OperationsPerSecond float64       `json:"operations_per_second"`
	MemoryAllocated     uint64        `json:"memory_allocated_bytes"`
	MemoryAllocations   uint64        `json:"memory_allocations"`
	GoroutineLeak       int           `json:"goroutine_leak"`
}

// String returns a human-readable representation of the results
func (br *BenchmarkResults) String() string {
	return fmt.Sprintf(
		"Duration: %v, Ops: %d, Errors: %d, Ops/sec: %.2f, Memory: %d bytes, Allocs: %d, Goroutine leak: %d",
		br.Duration, br.Operations, br.Errors, br.OperationsPerSecond,
		br.MemoryAllocated, br.MemoryAllocations, br.GoroutineLeak,
	)
}

// GenerateCommentThread builds a flat comment list for postID shaped as
// roots root comments, each with a reply chain of depth levels and fanout
// replies per level.
func GenerateCommentThread(postID int64, roots, depth, fanout int) []domain.Comment {
	author := &domain.User{ID: "1", FirstName: "Bench", LastName: "User"}
	out := make([]domain.Comment, 0)
	var next int64
	var grow func(parent *int64, level int)
	grow = func(parent *int64, level int) {
		if level > depth {
			return
		}
		n := fanout
		if parent == nil {
			n = roots
		}
		for i := 0; i < n; i++ {
			next++
			id := next
			out = append(out, domain.Comment{ID: id, PostID: postID, ParentCommentID: parent, Content: "reply", Author: author})
			grow(&id, level+1)
		}
	}
	grow(nil, 1)
	return out
}

// GenerateAccessCredential signs a JWT access credential for userID that
// expires after ttl. The client never verifies signatures, so the key is fixed.
func GenerateAccessCredential(userID string, ttl time.Duration) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(ttl).Unix(),
		"iat":    time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte("benchmark-signing-key"))
	if err != nil {
		panic(fmt.Sprintf("failed to sign benchmark credential: %v", err))
	}
	return signed
}
