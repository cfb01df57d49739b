package logic

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mliell/crowdmint/internal/chain"
	"github.com/mliell/crowdmint/internal/metadata"
	"github.com/mliell/crowdmint/internal/model"
	"github.com/stretchr/testify/require"
)

var (
	testStart   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testCreator = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func addr(i int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + i)))
}

func usdc(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), big.NewInt(1_000_000))
}

func openCampaign(title string, goal, raised int64) *chain.CampaignDetails {
	return &chain.CampaignDetails{
		Creator:         testCreator,
		Goal:            usdc(goal),
		Deadline:        big.NewInt(testStart.Add(30 * 24 * time.Hour).Unix()),
		AmountRaised:    usdc(raised),
		GoalBased:       true,
		MetadataURI:     title,
		Active:          true,
		MinContribution: usdc(1),
	}
}

// errPanicRead 让对应读取直接 panic
var errPanicRead = errors.New("read panicked")

// fakeReader 内存中的链上读取器
type fakeReader struct {
	mu          sync.Mutex
	addresses   []common.Address
	registryErr error
	details     map[common.Address]*chain.CampaignDetails
	detailsErr  map[common.Address]error
	progressErr map[common.Address]error
	donors      map[common.Address][]common.Address
	donorsErr   map[common.Address]error
	donations   map[common.Address]*big.Int
	donationErr map[common.Address]error

	registryHook  func(call int32) error
	registryCalls atomic.Int32
	detailsDelay  time.Duration
	inFlight      atomic.Int32
	maxInFlight   atomic.Int32
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		details:     map[common.Address]*chain.CampaignDetails{},
		detailsErr:  map[common.Address]error{},
		progressErr: map[common.Address]error{},
		donors:      map[common.Address][]common.Address{},
		donorsErr:   map[common.Address]error{},
		donations:   map[common.Address]*big.Int{},
		donationErr: map[common.Address]error{},
	}
}

// add 注册活动，标题同时作为元数据指针
func (f *fakeReader) add(address common.Address, d *chain.CampaignDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses = append(f.addresses, address)
	f.details[address] = d
}

func (f *fakeReader) setRegistryErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registryErr = err
}

func (f *fakeReader) CampaignAddresses(ctx context.Context) ([]common.Address, error) {
	call := f.registryCalls.Add(1)
	if f.registryHook != nil {
		if err := f.registryHook(call); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registryErr != nil {
		return nil, f.registryErr
	}
	return append([]common.Address(nil), f.addresses...), nil
}

func (f *fakeReader) Details(ctx context.Context, address common.Address) (*chain.CampaignDetails, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.detailsDelay > 0 {
		time.Sleep(f.detailsDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailsErr[address]; err != nil {
		return nil, err
	}
	d, ok := f.details[address]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return d, nil
}

func (f *fakeReader) Progress(ctx context.Context, address common.Address) (*chain.CampaignProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.progressErr[address]; err != nil {
		return nil, err
	}
	d, ok := f.details[address]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return &chain.CampaignProgress{Raised: d.AmountRaised, Goal: d.Goal, Percentage: big.NewInt(0)}, nil
}

func (f *fakeReader) Donors(ctx context.Context, address common.Address) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.donorsErr[address]; err != nil {
		return nil, err
	}
	return f.donors[address], nil
}

func (f *fakeReader) Donation(ctx context.Context, campaign, donor common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.donationErr[campaign]; errors.Is(err, errPanicRead) {
		panic(err)
	} else if err != nil {
		return nil, err
	}
	if amount, ok := f.donations[campaign]; ok {
		return amount, nil
	}
	return big.NewInt(0), nil
}

// titleResolver 把指针原样作为标题
type titleResolver struct{}

func (titleResolver) Resolve(ctx context.Context, uri string) metadata.Metadata {
	md := metadata.Defaults()
	if uri != "" {
		md.Title = uri
	}
	return md
}

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// sleepRecorder 记录等待时长，不真正等待
type sleepRecorder struct {
	mu      sync.Mutex
	waits   []time.Duration
	onSleep func() // 记录后、返回前调用
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	if r.onSleep != nil {
		r.onSleep()
	}
	return ctx.Err()
}

func (r *sleepRecorder) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

// fakeStore 内存快照存储
type fakeStore struct {
	mu        sync.Mutex
	runs      []*model.RefreshRunModel
	saved     []model.CampaignRecord
	fetchedAt time.Time
}

func (s *fakeStore) SaveRefresh(ctx context.Context, run *model.RefreshRunModel, campaigns []model.CampaignRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	s.saved = append([]model.CampaignRecord(nil), campaigns...)
	s.fetchedAt = run.FinishedAt
	return nil
}

func (s *fakeStore) LoadLatest(ctx context.Context, now time.Time) ([]model.CampaignRecord, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CampaignRecord(nil), s.saved...), s.fetchedAt, nil
}

type testHarness struct {
	reader      *fakeReader
	clock       *fakeClock
	batchSleeps *sleepRecorder
	retrySleeps *sleepRecorder
	service     *CampaignService
}

func newHarness(t *testing.T, reader *fakeReader, tweak func(*Options)) *testHarness {
	t.Helper()
	h := &testHarness{
		reader:      reader,
		clock:       &fakeClock{t: testStart},
		batchSleeps: &sleepRecorder{},
		retrySleeps: &sleepRecorder{},
	}
	opts := DefaultOptions(chain.IsRateLimited)
	opts.Now = h.clock.Now
	opts.Sleep = h.batchSleeps.Sleep
	opts.Policy.Sleep = h.retrySleeps.Sleep
	if tweak != nil {
		tweak(&opts)
	}

	svc, err := NewCampaignService(reader, titleResolver{}, opts)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	h.service = svc
	return h
}

func addresses(records []model.CampaignRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Address
	}
	return out
}
