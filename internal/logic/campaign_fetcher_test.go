package logic

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/mliell/crowdmint/internal/chain"
	"github.com/mliell/crowdmint/internal/model"
	"github.com/mliell/crowdmint/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(reader ChainReader, now time.Time) (*CampaignFetcher, *sleepRecorder) {
	sleeps := &sleepRecorder{}
	policy := retry.DefaultPolicy(chain.IsRateLimited)
	policy.Sleep = sleeps.Sleep
	return NewCampaignFetcher(reader, titleResolver{}, policy, func() time.Time { return now }), sleeps
}

func TestFetchNormalizesCampaign(t *testing.T) {
	reader := newFakeReader()
	d := openCampaign("Clean Water", 1000, 250)
	d.MinContribution = big.NewInt(1_500_000)
	reader.add(addr(1), d)
	reader.donors[addr(1)] = []common.Address{addr(7), addr(8)}
	f, _ := newTestFetcher(reader, testStart)

	record, err := f.Fetch(context.Background(), addr(1))
	require.NoError(t, err)

	assert.Equal(t, addr(1).Hex(), record.Address)
	assert.Equal(t, testCreator.Hex(), record.Creator)
	assert.Equal(t, "Clean Water", record.Title)
	assert.Equal(t, "1000", record.GoalUSDC.String())
	assert.Equal(t, "250", record.RaisedUSDC.String())
	assert.Equal(t, "1.5", record.MinContributionUSDC.String())
	assert.Equal(t, testStart.Add(30*24*time.Hour).Unix(), record.Deadline.Unix())
	assert.False(t, record.IsExpired)
	assert.False(t, record.HasReachedGoal)
	assert.Equal(t, model.CampaignStatusActive, record.Status)
	assert.Equal(t, 2, record.BackersCount)
}

func TestFetchDerivesStatusFromClock(t *testing.T) {
	reader := newFakeReader()
	d := openCampaign("Library", 1000, 1000)
	d.Deadline = big.NewInt(testStart.Unix() - 1)
	reader.add(addr(1), d)
	f, _ := newTestFetcher(reader, testStart)

	record, err := f.Fetch(context.Background(), addr(1))
	require.NoError(t, err)
	assert.True(t, record.IsExpired)
	assert.True(t, record.HasReachedGoal)
	assert.Equal(t, model.CampaignStatusExpiredGoalMet, record.Status)

	d.Withdrawn = true
	record, err = f.Fetch(context.Background(), addr(1))
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusWithdrawn, record.Status)
}

func TestFetchDeadlineEqualToNowIsNotExpired(t *testing.T) {
	reader := newFakeReader()
	d := openCampaign("Edge", 1000, 0)
	d.Deadline = big.NewInt(testStart.Unix())
	reader.add(addr(1), d)
	f, _ := newTestFetcher(reader, testStart.Add(500*time.Millisecond))

	record, err := f.Fetch(context.Background(), addr(1))
	require.NoError(t, err)
	assert.False(t, record.IsExpired)
}

func TestFetchOversizedDeadlineIsNotExpired(t *testing.T) {
	cases := []struct {
		name     string
		deadline *big.Int
	}{
		{"uint256 max", new(big.Int).Set(math.MaxBig256)},
		{"beyond int64", new(big.Int).Lsh(big.NewInt(1), 64)},
		{"past year 9999", big.NewInt(1 << 40)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader := newFakeReader()
			d := openCampaign("Open ended", 1000, 0)
			d.Deadline = tc.deadline
			reader.add(addr(1), d)
			f, _ := newTestFetcher(reader, testStart)

			record, err := f.Fetch(context.Background(), addr(1))
			require.NoError(t, err)
			assert.False(t, record.IsExpired)
			assert.Equal(t, model.CampaignStatusActive, record.Status)
			assert.Equal(t, 9999, record.Deadline.Year())

			_, err = record.Deadline.MarshalJSON()
			assert.NoError(t, err)
		})
	}
}

func TestFetchFailureStages(t *testing.T) {
	reader := newFakeReader()
	reader.add(addr(1), openCampaign("A", 10, 1))
	reader.add(addr(2), openCampaign("B", 10, 1))
	reader.detailsErr[addr(1)] = errors.New("execution reverted")
	reader.progressErr[addr(2)] = errors.New("execution reverted")
	f, _ := newTestFetcher(reader, testStart)

	_, err := f.Fetch(context.Background(), addr(1))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StageDetails, fe.Stage)
	assert.Equal(t, addr(1), fe.Address)

	_, err = f.Fetch(context.Background(), addr(2))
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StageProgress, fe.Stage)
}

func TestFetchRetriesRateLimitedReads(t *testing.T) {
	reader := newFakeReader()
	reader.add(addr(1), openCampaign("A", 10, 1))
	reader.detailsErr[addr(1)] = errors.New("429 Too Many Requests")
	f, sleeps := newTestFetcher(reader, testStart)

	_, err := f.Fetch(context.Background(), addr(1))
	require.Error(t, err)
	assert.Equal(t, retry.KindRateLimited, retry.KindOf(err))
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeps.Waits())
}

type panickingReader struct {
	*fakeReader
}

func (panickingReader) Details(ctx context.Context, address common.Address) (*chain.CampaignDetails, error) {
	panic("decoder blew up")
}

func TestFetchRecoversPanickingRead(t *testing.T) {
	reader := newFakeReader()
	reader.add(addr(1), openCampaign("A", 10, 1))
	f, _ := newTestFetcher(panickingReader{reader}, testStart)

	var err error
	assert.NotPanics(t, func() { _, err = f.Fetch(context.Background(), addr(1)) })
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StageDetails, fe.Stage)
}
