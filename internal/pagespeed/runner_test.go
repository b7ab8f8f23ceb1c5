package pagespeed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Anuar-boop/teamrankrise/internal/audit"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func psiFixture(t *testing.T) []byte {
	t.Helper()
	lhr, err := os.ReadFile("../audit/testdata/lhr.json")
	require.NoError(t, err)
	return []byte(fmt.Sprintf(`{"id":"https://example.com/","lighthouseResult":%s}`, lhr))
}

func TestRunnerBuildsResultFromLighthouseResult(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{resp: Response{StatusCode: 200, Body: psiFixture(t)}}
	r := NewRunner(f, time.Minute, fixedClock{testNow}, zap.NewNop())

	res, err := r.Run(context.Background(), "example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com"}, f.called)
	require.Equal(t, "https://example.com", res.URL)
	require.Equal(t, testNow, res.Timestamp)
	require.Equal(t, audit.Categories{Performance: 87, Accessibility: 100, BestPractices: 92, SEO: 50}, res.Categories)
	require.Len(t, res.Opportunities, 4)
}

func TestRunnerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  string
		fetcher *fakeFetcher
		wantErr error
		wantMsg string
	}{
		{
			name:    "invalid url",
			target:  "   ",
			fetcher: &fakeFetcher{},
			wantErr: audit.ErrInvalidInput,
		},
		{
			name:    "upstream unreachable",
			target:  "https://example.com",
			fetcher: &fakeFetcher{err: fmt.Errorf("%w: refused", ErrUnreachable)},
			wantErr: audit.ErrToolFailure,
			wantMsg: "refused",
		},
		{
			name:   "upstream error document",
			target: "https://example.com",
			fetcher: &fakeFetcher{resp: Response{
				StatusCode: 500,
				Body:       []byte(`{"error":{"code":500,"message":"Lighthouse returned error: NO_FCP"}}`),
			}},
			wantErr: audit.ErrToolFailure,
			wantMsg: "NO_FCP",
		},
		{
			name:    "missing lighthouse result",
			target:  "https://example.com",
			fetcher: &fakeFetcher{resp: Response{StatusCode: 200, Body: []byte(`{"id":"x"}`)}},
			wantErr: audit.ErrToolFailure,
			wantMsg: "no lighthouseResult",
		},
		{
			name:    "missing category",
			target:  "https://example.com",
			fetcher: &fakeFetcher{resp: Response{StatusCode: 200, Body: []byte(`{"lighthouseResult":{"categories":{}}}`)}},
			wantErr: audit.ErrToolFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRunner(tt.fetcher, time.Minute, fixedClock{testNow}, nil)
			_, err := r.Run(context.Background(), tt.target)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				require.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}

type blockingFetcher struct{}

func (blockingFetcher) Fetch(ctx context.Context, _ string) (Response, error) {
	<-ctx.Done()
	return Response{}, errors.Join(ErrUnreachable, ctx.Err())
}

func TestRunnerTimeout(t *testing.T) {
	t.Parallel()

	r := NewRunner(blockingFetcher{}, 10*time.Millisecond, fixedClock{testNow}, zap.NewNop())
	_, err := r.Run(context.Background(), "https://example.com")
	require.ErrorIs(t, err, audit.ErrAuditTimeout)
}
