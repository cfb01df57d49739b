package logic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mliell/crowdmint/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(reader *fakeReader, n int) []string {
	want := make([]string, n)
	for i := 0; i < n; i++ {
		a := addr(i)
		reader.add(a, openCampaign(fmt.Sprintf("Campaign %d", i), 1000, int64(100*i)))
		want[i] = a.Hex()
	}
	return want
}

func TestGetCampaignsColdStart(t *testing.T) {
	reader := newFakeReader()
	want := seed(reader, 4)
	h := newHarness(t, reader, nil)

	snap := h.service.GetCampaigns(context.Background())

	assert.Equal(t, want, addresses(snap.Campaigns))
	assert.Equal(t, testStart, snap.Timestamp)
	assert.Equal(t, 5*time.Minute, snap.TTL)
	assert.Equal(t, testStart.Add(5*time.Minute), snap.NextUpdate)
	assert.Equal(t, int32(1), reader.registryCalls.Load())
	assert.Equal(t, "Campaign 0", snap.Campaigns[0].Title)
}

func TestGetCampaignsFreshnessBoundary(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 2)
	h := newHarness(t, reader, nil)
	ctx := context.Background()

	h.service.GetCampaigns(ctx)
	require.Equal(t, int32(1), reader.registryCalls.Load())

	h.clock.Advance(299999 * time.Millisecond)
	snap := h.service.GetCampaigns(ctx)
	assert.Equal(t, int32(1), reader.registryCalls.Load())
	assert.Equal(t, testStart, snap.Timestamp)

	h.clock.Advance(2 * time.Millisecond)
	snap = h.service.GetCampaigns(ctx)
	assert.Equal(t, int32(2), reader.registryCalls.Load())
	assert.Equal(t, testStart.Add(300001*time.Millisecond), snap.Timestamp)
}

func TestRefreshBatchesInOrder(t *testing.T) {
	cases := []struct {
		name    string
		count   int
		batches int
	}{
		{"empty", 0, 0},
		{"single", 1, 1},
		{"exact", 3, 1},
		{"partial", 7, 3},
		{"many", 10, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader := newFakeReader()
			reader.detailsDelay = 2 * time.Millisecond
			want := seed(reader, tc.count)
			h := newHarness(t, reader, nil)

			require.True(t, h.service.Refresh(context.Background()))
			snap := h.service.GetCampaigns(context.Background())

			assert.Equal(t, want, addresses(snap.Campaigns))
			assert.LessOrEqual(t, reader.maxInFlight.Load(), int32(DefaultBatchSize))

			sleeps := tc.batches - 1
			if sleeps < 0 {
				sleeps = 0
			}
			waits := h.batchSleeps.Waits()
			assert.Len(t, waits, sleeps)
			for _, w := range waits {
				assert.Equal(t, 1500*time.Millisecond, w)
			}
		})
	}
}

func TestRefreshDropsFailedCampaigns(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 5)
	reader.detailsErr[addr(1)] = errors.New("execution reverted")
	reader.progressErr[addr(3)] = errors.New("execution reverted")
	reader.donorsErr[addr(4)] = errors.New("execution reverted")
	reader.donors[addr(0)] = []common.Address{addr(90), addr(91), addr(90)}
	h := newHarness(t, reader, nil)

	h.service.Refresh(context.Background())
	snap := h.service.GetCampaigns(context.Background())

	assert.Equal(t, []string{addr(0).Hex(), addr(2).Hex(), addr(4).Hex()}, addresses(snap.Campaigns))
	assert.Equal(t, 3, snap.Campaigns[0].BackersCount)
	assert.Equal(t, 0, snap.Campaigns[2].BackersCount)

	run := h.service.Status().LastRun
	require.NotNil(t, run)
	assert.Equal(t, 5, run.AddressCount)
	assert.Equal(t, 3, run.CampaignCount)
	assert.Equal(t, 2, run.FailedCount)
}

func TestRefreshSingleFlight(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 2)
	entered := make(chan struct{})
	release := make(chan struct{})
	reader.registryHook = func(call int32) error {
		if call == 1 {
			close(entered)
			<-release
		}
		return nil
	}
	h := newHarness(t, reader, nil)
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- h.service.Refresh(ctx) }()
	<-entered

	var wg sync.WaitGroup
	skipped := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			skipped <- h.service.Refresh(ctx)
		}()
	}
	wg.Wait()
	close(skipped)
	for ran := range skipped {
		assert.False(t, ran)
	}

	snap := h.service.GetCampaigns(ctx)
	assert.Empty(t, snap.Campaigns)
	assert.NotNil(t, snap.Campaigns)
	assert.Equal(t, snap.Timestamp, snap.NextUpdate)
	assert.True(t, h.service.Status().InFlight)

	close(release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), reader.registryCalls.Load())
	assert.False(t, h.service.Status().InFlight)

	assert.True(t, h.service.Refresh(ctx))
	assert.Equal(t, int32(2), reader.registryCalls.Load())
}

func TestRefreshRecoversFromPanic(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 1)
	reader.registryHook = func(call int32) error {
		if call == 1 {
			panic("node exploded")
		}
		return nil
	}
	h := newHarness(t, reader, nil)
	ctx := context.Background()

	assert.NotPanics(t, func() { h.service.Refresh(ctx) })
	assert.False(t, h.service.Status().InFlight)
	assert.False(t, h.service.Status().Populated)

	assert.True(t, h.service.Refresh(ctx))
	assert.Len(t, h.service.GetCampaigns(ctx).Campaigns, 1)
}

func TestRegistryFailureOverwritesCache(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 2)
	h := newHarness(t, reader, nil)
	ctx := context.Background()

	h.service.Refresh(ctx)
	require.Len(t, h.service.GetCampaigns(ctx).Campaigns, 2)

	reader.setRegistryErr(errors.New("connection refused"))
	h.clock.Advance(time.Minute)
	h.service.Refresh(ctx)

	snap := h.service.GetCampaigns(ctx)
	assert.Empty(t, snap.Campaigns)
	assert.Equal(t, testStart.Add(time.Minute), snap.Timestamp)
	assert.Equal(t, "failed after 1 attempt(s): connection refused", h.service.Status().LastRun.RegistryError)
}

func TestRegistryFailureKeepsStaleWhenConfigured(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 2)
	h := newHarness(t, reader, func(o *Options) { o.KeepStaleOnRegistryError = true })
	ctx := context.Background()

	h.service.Refresh(ctx)
	reader.setRegistryErr(errors.New("connection refused"))
	h.clock.Advance(time.Minute)
	h.service.Refresh(ctx)

	snap := h.service.GetCampaigns(ctx)
	assert.Len(t, snap.Campaigns, 2)
	assert.Equal(t, testStart, snap.Timestamp)
}

func TestRegistryRateLimitIsRetried(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 1)
	reader.registryHook = func(call int32) error {
		if call == 1 {
			return errors.New("429 Too Many Requests")
		}
		return nil
	}
	h := newHarness(t, reader, nil)

	h.service.Refresh(context.Background())

	assert.Equal(t, int32(2), reader.registryCalls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second}, h.retrySleeps.Waits())
	assert.Len(t, h.service.GetCampaigns(context.Background()).Campaigns, 1)
}

func TestRefreshPersistsAndWarmStarts(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 3)
	store := &fakeStore{}
	h := newHarness(t, reader, func(o *Options) { o.Store = store })

	h.service.Refresh(context.Background())
	require.Len(t, store.runs, 1)
	assert.Len(t, store.saved, 3)
	assert.NotEmpty(t, store.runs[0].Id)

	cold := newHarness(t, newFakeReader(), func(o *Options) { o.Store = store })
	require.NoError(t, cold.service.WarmStart(context.Background()))

	snap := cold.service.GetCampaigns(context.Background())
	assert.Len(t, snap.Campaigns, 3)
	assert.Equal(t, testStart, snap.Timestamp)
	assert.Equal(t, int32(0), cold.reader.registryCalls.Load())
}

func TestWarmStartWithoutSnapshot(t *testing.T) {
	h := newHarness(t, newFakeReader(), func(o *Options) { o.Store = &fakeStore{} })

	require.NoError(t, h.service.WarmStart(context.Background()))
	assert.False(t, h.service.Status().Populated)
}

func TestCampaignLiveFetch(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 1)
	h := newHarness(t, reader, nil)

	record, err := h.service.Campaign(context.Background(), addr(0))
	require.NoError(t, err)
	assert.Equal(t, addr(0).Hex(), record.Address)
	assert.Equal(t, int32(0), reader.registryCalls.Load())

	_, err = h.service.Campaign(context.Background(), addr(42))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StageDetails, fe.Stage)
}

func TestPartition(t *testing.T) {
	assert.Empty(t, Partition([]int{}, 3))
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, Partition([]int{1, 2, 3, 4, 5, 6, 7}, 3))
	assert.Equal(t, [][]int{{1}, {2}}, Partition([]int{1, 2}, 0))
}

func TestStatusReportsAge(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 1)
	h := newHarness(t, reader, nil)

	h.service.Refresh(context.Background())
	h.clock.Advance(90 * time.Second)

	status := h.service.Status()
	assert.True(t, status.Populated)
	assert.Equal(t, 1, status.Campaigns)
	assert.Equal(t, 90*time.Second, status.Age)
	assert.Equal(t, testStart.Add(5*time.Minute), status.NextUpdate)
	assert.IsType(t, &model.RefreshRunModel{}, status.LastRun)
}

func TestGetCampaignsIgnoresCallerCancellation(t *testing.T) {
	reader := newFakeReader()
	want := seed(reader, 7)
	h := newHarness(t, reader, nil)

	ctx, cancel := context.WithCancel(context.Background())
	h.batchSleeps.onSleep = cancel

	snap := h.service.GetCampaigns(ctx)
	assert.Equal(t, want, addresses(snap.Campaigns))
	require.Error(t, ctx.Err())

	h.clock.Advance(time.Minute)
	snap = h.service.GetCampaigns(context.Background())
	assert.Equal(t, want, addresses(snap.Campaigns))
	assert.Equal(t, testStart, snap.Timestamp)
	assert.Equal(t, int32(1), reader.registryCalls.Load())
}

func TestInterruptedRefreshKeepsPreviousCache(t *testing.T) {
	reader := newFakeReader()
	want := seed(reader, 4)
	store := &fakeStore{}
	h := newHarness(t, reader, func(o *Options) { o.Store = store })

	require.True(t, h.service.Refresh(context.Background()))
	require.Len(t, store.runs, 1)

	for i := 4; i < 7; i++ {
		reader.add(addr(i), openCampaign(fmt.Sprintf("Campaign %d", i), 1000, 1))
	}
	h.clock.Advance(6 * time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	h.batchSleeps.onSleep = cancel

	assert.True(t, h.service.Refresh(ctx))

	status := h.service.Status()
	assert.Equal(t, 4, status.Campaigns)
	assert.Equal(t, testStart, status.Timestamp)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, 7, status.LastRun.AddressCount)
	assert.Len(t, store.runs, 1)
	assert.Equal(t, want, addresses(store.saved))
}

func TestInterruptedColdRefreshLeavesCacheEmpty(t *testing.T) {
	reader := newFakeReader()
	seed(reader, 7)
	h := newHarness(t, reader, nil)

	ctx, cancel := context.WithCancel(context.Background())
	h.batchSleeps.onSleep = cancel
	h.service.Refresh(ctx)
	assert.False(t, h.service.Status().Populated)

	h.batchSleeps.onSleep = nil
	assert.Len(t, h.service.GetCampaigns(context.Background()).Campaigns, 7)
}
