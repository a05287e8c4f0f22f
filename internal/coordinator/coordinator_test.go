package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/internal/scraper"
	"github.com/jgoulah/ecomane/pkg/models"
)

// fakeProvider returns errs in order, then polls
type fakeProvider struct {
	errs  []error
	polls []*models.Poll
	calls int
}

func (f *fakeProvider) Fetch(ctx context.Context) (*models.Poll, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.polls) == 0 {
		return nil, errors.New("no more polls")
	}
	p := f.polls[0]
	f.polls = f.polls[1:]
	return p, nil
}

func poll(id string, snap models.Snapshot, circuits int) *models.Poll {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.Poll{ID: id, Snapshot: snap, CircuitCount: circuits, StartedAt: now, FinishedAt: now.Add(time.Second)}
}

func newTestCoordinator(p Provider) (*Coordinator, *[]time.Duration) {
	c := New(p, 2*time.Minute, zap.NewNop())
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

func transportErr(page int) error {
	return &scraper.FetchError{URL: "http://device/elecCheck_6000.cgi?disp=2&page=1", Page: page, StatusCode: 503}
}

func TestFirstRefresh_RetriesUpdateFailures(t *testing.T) {
	p := &fakeProvider{
		errs:  []error{transportErr(0), transportErr(2)},
		polls: []*models.Poll{poll("a", models.Snapshot{"num_L1": "1.0"}, 0)},
	}
	c, waits := newTestCoordinator(p)

	require.NoError(t, c.FirstRefresh(context.Background()))

	assert.Equal(t, 3, p.calls)
	assert.Equal(t, []time.Duration{2 * time.Minute, 2 * time.Minute}, *waits)
	assert.True(t, c.Ready())
	assert.Equal(t, "a", c.Last().ID)
	assert.NoError(t, c.LastError())
}

func TestFirstRefresh_OtherErrorsReturnImmediately(t *testing.T) {
	boom := errors.New("creating request: bad url")
	p := &fakeProvider{errs: []error{boom}}
	c, waits := newTestCoordinator(p)

	err := c.FirstRefresh(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, *waits)
	assert.False(t, c.Ready())
}

func TestFirstRefresh_Cancelled(t *testing.T) {
	p := &fakeProvider{errs: []error{transportErr(0), transportErr(0), transportErr(0)}}
	c := New(p, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	err := c.FirstRefresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}

func TestRefresh_KeepsPreviousPollOnFailure(t *testing.T) {
	p := &fakeProvider{
		polls: []*models.Poll{poll("a", models.Snapshot{"num_L1": "1.0", "em_circuit_00": "10"}, 1)},
	}
	c, _ := newTestCoordinator(p)
	require.NoError(t, c.Refresh(context.Background()))

	p.errs = []error{transportErr(1)}
	err := c.Refresh(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.Equal(t, err, c.LastError())
	assert.Equal(t, "a", c.Last().ID)
	assert.Equal(t, "1.0", c.Snapshot()["num_L1"])
	assert.Equal(t, 1, c.CircuitCount())
}

func TestRefresh_ReplacesSnapshot(t *testing.T) {
	p := &fakeProvider{
		polls: []*models.Poll{
			poll("a", models.Snapshot{"em_circuit_00": "10", "em_circuit_01": "20"}, 2),
			poll("b", models.Snapshot{"em_circuit_00": "15"}, 1),
		},
	}
	c, _ := newTestCoordinator(p)

	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, models.Snapshot{"em_circuit_00": "15"}, c.Snapshot())
	assert.Len(t, c.Circuits(), 1)
}

func TestRefresh_NotifiesListeners(t *testing.T) {
	p := &fakeProvider{polls: []*models.Poll{poll("a", models.Snapshot{}, 0)}}
	c, _ := newTestCoordinator(p)

	var got []string
	c.OnUpdate(func(ctx context.Context, poll *models.Poll) { got = append(got, "first:"+poll.ID) })
	c.OnUpdate(func(ctx context.Context, poll *models.Poll) { got = append(got, "second:"+poll.ID) })

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"first:a", "second:a"}, got)

	p.errs = []error{transportErr(0)}
	_ = c.Refresh(context.Background())
	assert.Len(t, got, 2)
}

func TestSnapshot_IsACopy(t *testing.T) {
	p := &fakeProvider{polls: []*models.Poll{poll("a", models.Snapshot{"num_L1": "1.0"}, 0)}}
	c, _ := newTestCoordinator(p)
	require.NoError(t, c.Refresh(context.Background()))

	snap := c.Snapshot()
	snap["num_L1"] = "changed"

	assert.Equal(t, "1.0", c.Snapshot()["num_L1"])
}

func TestEmptyCoordinator(t *testing.T) {
	c, _ := newTestCoordinator(&fakeProvider{})

	assert.False(t, c.Ready())
	assert.Nil(t, c.Last())
	assert.Empty(t, c.Snapshot())
	assert.Zero(t, c.CircuitCount())
	assert.Nil(t, c.Circuits())
	assert.Len(t, c.UsageMetrics(), 7)
}
