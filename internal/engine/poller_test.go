package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"consentgate/internal/snapshot"
	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/sentinel"
)

func TestPolling_RefreshesConfigPeriodically(t *testing.T) {
	f := newFixture(t, testWireConfig())
	expectNoRecord(f)
	require.NoError(t, f.engine.Start(context.Background()))

	refreshed := make(chan struct{}, 8)
	f.authority.EXPECT().
		FetchConfig(gomock.Any(), id.WidgetID("widget-1")).
		DoAndReturn(func(context.Context, id.WidgetID) (snapshot.WireConfig, error) {
			select {
			case refreshed <- struct{}{}:
			default:
			}
			return testWireConfig(), nil
		}).MinTimes(1)

	f.engine.intervals = pollIntervals{Short: 5 * time.Millisecond, Long: 5 * time.Millisecond, Preview: 5 * time.Millisecond}
	f.engine.StartPolling(context.Background())
	defer f.engine.StopPolling()

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("no configuration refresh observed")
	}
}

func TestPolling_StopsWhenConfigurationGone(t *testing.T) {
	f := newFixture(t, testWireConfig())
	expectNoRecord(f)
	require.NoError(t, f.engine.Start(context.Background()))

	gone := make(chan struct{})
	f.authority.EXPECT().
		FetchConfig(gomock.Any(), id.WidgetID("widget-1")).
		DoAndReturn(func(context.Context, id.WidgetID) (snapshot.WireConfig, error) {
			close(gone)
			return snapshot.WireConfig{}, sentinel.ErrGone
		})

	f.engine.intervals = pollIntervals{Short: 5 * time.Millisecond, Long: 5 * time.Millisecond, Preview: 5 * time.Millisecond}
	f.engine.StartPolling(context.Background())

	select {
	case <-gone:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never fetched")
	}
	// The loop exits on its own after a gone configuration.
	assert.Eventually(t, func() bool {
		return f.engine.State() == StateError
	}, 2*time.Second, 10*time.Millisecond)
	f.engine.StopPolling()
}
