package benchmarks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"gitlab.com/timkado/api/daisi-feed-client/benchmarks/mocks"
	"gitlab.com/timkado/api/daisi-feed-client/benchmarks/utils"
	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/memory"
	"gitlab.com/timkado/api/daisi-feed-client/internal/application"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

func setupRefreshBenchmark(b *testing.B, delay time.Duration) (*application.TokenRefreshCoordinator, *application.SessionStore, *mocks.MockRefresher) {
	b.Helper()
	cfg := mocks.NewMockConfigProvider().Get()
	logger := mocks.NewMockLogger()

	sessions := application.NewSessionStore(logger, memory.NewCredentialStore())
	err := sessions.Establish(context.Background(), domain.AuthResult{
		User:        domain.User{ID: "1"},
		Credentials: domain.CredentialPair{AccessCredential: "access-0", RefreshCredential: "refresh-0"},
	})
	if err != nil {
		b.Fatalf("failed to establish benchmark session: %v", err)
	}

	refresher := &mocks.MockRefresher{Delay: delay}
	timeout := time.Duration(cfg.Auth.RefreshTimeoutSeconds) * time.Second
	return application.NewTokenRefreshCoordinator(logger, sessions, refresher, nil, timeout), sessions, refresher
}

func unauthorized() *http.Response {
	return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(strings.NewReader(""))}
}

// rejecting answers 401 for the rejected credential and 200 for anything else.
func rejecting(rejected string) func(context.Context, string) (*http.Response, error) {
	return func(_ context.Context, access string) (*http.Response, error) {
		status := http.StatusOK
		if access == rejected {
			status = http.StatusUnauthorized
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
}

// BenchmarkTokenRefresh_UnauthorizedStorm fires concurrent 401s at the
// coordinator for one expired credential; all of them must be replayed
// behind a single refresh.
func BenchmarkTokenRefresh_UnauthorizedStorm(b *testing.B) {
	for _, concurrency := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("Concurrency_%d", concurrency), func(b *testing.B) {
			coord, sessions, refresher := setupRefreshBenchmark(b, time.Millisecond)
			runner := utils.NewBenchmarkRunner()
			ctx := context.Background()

			b.ResetTimer()
			runner.Start()
			for i := 0; i < b.N; i++ {
				expired := sessions.AccessCredential()
				var wg sync.WaitGroup
				for j := 0; j < concurrency; j++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						call := &domain.Call{Method: http.MethodGet, Path: "/posts", Credential: expired, Send: rejecting(expired)}
						resp, err := coord.Intercept(ctx, call, unauthorized())
						if err != nil || resp.StatusCode != http.StatusOK {
							runner.IncrementErrors(1)
							return
						}
						runner.IncrementOperations(1)
					}()
				}
				wg.Wait()
			}
			runner.Stop()
			b.StopTimer()

			if calls := refresher.Calls.Load(); calls != int64(b.N) {
				b.Errorf("expected one refresh per storm (%d), got %d", b.N, calls)
			}
			results := runner.GetResults()
			if results.Errors > 0 {
				b.Errorf("%d replays failed", results.Errors)
			}
			b.ReportMetric(float64(concurrency), "requests/refresh")
			b.Logf("Refresh storm: %s", results.String())
		})
	}
}

// BenchmarkTokenRefresh_PassThrough measures the cost the interceptor adds to
// every successful response.
func BenchmarkTokenRefresh_PassThrough(b *testing.B) {
	coord, _, _ := setupRefreshBenchmark(b, 0)
	ctx := context.Background()
	call := &domain.Call{Method: http.MethodGet, Path: "/posts"}
	resp := &http.Response{StatusCode: http.StatusOK}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := coord.Intercept(ctx, call, resp); err != nil {
				b.Errorf("pass-through failed: %v", err)
			}
		}
	})
}

func BenchmarkPeekCredentialClaims(b *testing.B) {
	credential := utils.GenerateAccessCredential("42", time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		claims, err := application.PeekCredentialClaims(credential)
		if err != nil || claims.UserID != "42" {
			b.Fatalf("unexpected claims %+v: %v", claims, err)
		}
	}
}
