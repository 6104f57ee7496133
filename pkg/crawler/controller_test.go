package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcrawler/pkg/config"
	"igcrawler/pkg/driver/drivertest"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/feed"
)

func TestCollectReachesTargetInOneRound(t *testing.T) {
	all := tiles(5)
	d := drivertest.New(testSel.Item, all)
	clock := &fakeClock{}

	res, err := newTestController(d, clock).Collect(context.Background(), 5, feed.Summary)

	require.NoError(t, err)
	assert.Equal(t, []string{postKey(1), postKey(2), postKey(3), postKey(4), postKey(5)}, keys(res))
	assert.True(t, res.Complete)
	assert.Equal(t, StopTargetReached, res.Reason)
	assert.Equal(t, time.Duration(0), res.ElapsedWait)
	assert.Empty(t, clock.waits)
	assert.Equal(t, 1, res.Rounds)
	assert.NotEmpty(t, res.RunID)

	for _, it := range res.Items {
		assert.Equal(t, feed.DetailSummary, it.Detail)
		assert.Equal(t, it.Key+"thumb.jpg", it.MediaURL)
	}
}

func TestCollectBacksOffUntilFeedResumes(t *testing.T) {
	all := tiles(10)
	d := drivertest.New(testSel.Item, all[:3], all[:3], all[:3], all[:3], all)
	clock := &fakeClock{}

	res, err := newTestController(d, clock).Collect(context.Background(), 10, feed.Summary)

	require.NoError(t, err)
	assert.Len(t, res.Items, 10)
	assert.True(t, res.Complete)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.waits)
	assert.Equal(t, 7*time.Second, res.ElapsedWait)
	assert.Equal(t, 5, res.Rounds)

	calls := d.Calls()
	assert.Equal(t, []int{600, 600, 600}, calls.ScrollBackward)
	// one forward scroll after the first round plus one per recovery
	assert.Equal(t, 4, calls.ScrollForward)
}

func TestCollectStopsOnExhaustedFeed(t *testing.T) {
	all := tiles(12)
	d := drivertest.New(testSel.Item, all)
	clock := &fakeClock{}
	d.LoadingSelector = testSel.Loading
	d.Loading = func() bool { return clock.total <= 300*time.Second }

	res, err := newTestController(d, clock).Collect(context.Background(), 20, feed.Summary)

	require.NoError(t, err)
	assert.Len(t, res.Items, 12)
	assert.False(t, res.Complete)
	assert.Equal(t, StopFeedExhausted, res.Reason)

	var want []time.Duration
	for w := time.Second; w <= 256*time.Second; w *= 2 {
		want = append(want, w)
	}
	assert.Equal(t, want, clock.waits)
	assert.Equal(t, 511*time.Second, res.ElapsedWait)
	assert.Less(t, res.ElapsedWait, 600*time.Second)
}

func TestCollectFlagsStuckDetail(t *testing.T) {
	all := tiles(10)
	d := drivertest.New(testSel.Item, all)
	for i, tile := range all {
		d.Details[tile] = detailView(postKey(i+1), day(i+1))
	}
	// item 4 keeps showing item 3
	d.Details[all[3]] = detailView(postKey(3), day(4))
	clock := &fakeClock{}

	res, err := newTestController(d, clock).Collect(context.Background(), 10, feed.FullDetail)

	require.NoError(t, err)
	require.Len(t, res.Items, 10)
	assert.True(t, res.Complete)

	var complete, flagged int
	for _, it := range res.Items {
		switch it.Detail {
		case feed.DetailComplete:
			complete++
		case feed.DetailUnavailable:
			flagged++
			assert.Equal(t, postKey(4), it.Key)
			assert.Equal(t, postKey(4)+"thumb.jpg", it.MediaURL)
			assert.Nil(t, it.Timestamp)
		}
	}
	assert.Equal(t, 9, complete)
	assert.Equal(t, 1, flagged)

	// newest first, the undated flagged item last
	assert.Equal(t, postKey(10), res.Items[0].Key)
	assert.Equal(t, postKey(4), res.Items[9].Key)

	calls := d.Calls()
	assert.Len(t, calls.Opened, 10)
	assert.Equal(t, 10, calls.Closed)
	assert.False(t, d.DetailOpen())
}

func TestCollectRejectsLaggingDetailView(t *testing.T) {
	all := tiles(3)
	d := drivertest.New(testSel.Item, all)
	d.Details[all[0]] = detailView(postKey(1), day(1))
	// item 2 keeps showing item 1, then item 3 lags one behind and shows item 2
	d.Details[all[1]] = detailView(postKey(1), day(1))
	d.Details[all[2]] = detailView(postKey(2), day(2))

	res, err := newTestController(d, &fakeClock{}).Collect(context.Background(), 3, feed.FullDetail)

	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	byKey := make(map[string]feed.Item)
	for _, it := range res.Items {
		byKey[it.Key] = it
	}
	assert.Equal(t, feed.DetailComplete, byKey[postKey(1)].Detail)
	for _, i := range []int{2, 3} {
		it := byKey[postKey(i)]
		assert.Equal(t, feed.DetailUnavailable, it.Detail, "item %d", i)
		assert.Equal(t, postKey(i)+"thumb.jpg", it.MediaURL, "item %d", i)
		assert.Nil(t, it.Timestamp, "item %d", i)
		assert.Empty(t, it.Caption, "item %d", i)
	}
	assert.Equal(t, 3, d.Calls().Closed)
}

func TestCollectDetailFields(t *testing.T) {
	all := tiles(1)
	d := drivertest.New(testSel.Item, all)
	d.Details[all[0]] = detailView(postKey(1), day(2))

	res, err := newTestController(d, &fakeClock{}).Collect(context.Background(), 1, feed.FullDetail)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	it := res.Items[0]
	assert.Equal(t, feed.DetailComplete, it.Detail)
	assert.Equal(t, postKey(1)+"full.jpg", it.MediaURL)
	assert.Equal(t, "Sunrise with @Bob and @carol.", it.Caption)
	require.NotNil(t, it.Timestamp)
	assert.True(t, day(2).Equal(*it.Timestamp))
	require.NotNil(t, it.LikeCount)
	assert.Equal(t, 1204, *it.LikeCount)

	assert.Equal(t, []feed.Collaborator{
		{Handle: "alice", Kind: feed.CollabTag},
		{Handle: "natgeo", Kind: feed.CollabTag},
		{Handle: "bob", Kind: feed.CollabMention},
		{Handle: "carol", Kind: feed.CollabMention},
	}, it.Collaborators)

	require.Len(t, it.Comments, 1)
	assert.Equal(t, "dave", it.Comments[0].Author)
	assert.Equal(t, []string{"alice"}, it.Comments[0].Mentions)
	require.NotNil(t, it.CommentCount)
	assert.Equal(t, 48, *it.CommentCount)
}

func TestCollectCommentTotalNotShown(t *testing.T) {
	all := tiles(1)
	d := drivertest.New(testSel.Item, all)
	view := detailView(postKey(1), day(2))
	delete(view.Children, testSel.CommentTotal)
	d.Details[all[0]] = view

	res, err := newTestController(d, &fakeClock{}).Collect(context.Background(), 1, feed.FullDetail)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	it := res.Items[0]
	assert.Len(t, it.Comments, 1)
	// loaded comments are not the post's total
	assert.Nil(t, it.CommentCount)
}

func TestCollectDetailNeverRenders(t *testing.T) {
	all := tiles(2)
	d := drivertest.New(testSel.Item, all)
	d.Details[all[0]] = detailView(postKey(1), day(1))
	// all[1] opens an empty view

	res, err := newTestController(d, &fakeClock{}).Collect(context.Background(), 2, feed.FullDetail)

	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, feed.DetailComplete, res.Items[0].Detail)
	assert.Equal(t, feed.DetailUnavailable, res.Items[1].Detail)
	assert.Equal(t, 2, d.Calls().Closed)
}

func TestCollectIsIdempotent(t *testing.T) {
	all := tiles(6)
	d := drivertest.New(testSel.Item,
		[]*drivertest.Node{all[0], all[1], all[0]},
		[]*drivertest.Node{all[1], all[2], all[0], all[2]},
		[]*drivertest.Node{all[3], all[0], all[4], all[5], all[1]},
	)

	c := newTestController(d, &fakeClock{})
	s := newSession("run", 6, feed.Summary, c.budget, c.scheduler.Reset())
	for i := 0; i < 3; i++ {
		s.rounds++
		c.round(context.Background(), c.logger, s)
		assert.Equal(t, len(s.seen), len(s.items))
	}
	res := s.result(StopTargetReached)
	assert.Equal(t, []string{postKey(1), postKey(2), postKey(3), postKey(4), postKey(5), postKey(6)}, keys(res))
}

func TestCollectBackoffGrowsStrictly(t *testing.T) {
	all := tiles(2)
	d := drivertest.New(testSel.Item, all[:1], all[:1], all[:1], all[:1], all[:1], all)
	clock := &fakeClock{}

	var reports []RoundReport
	obs := RoundObserverFunc(func(_ context.Context, r RoundReport) { reports = append(reports, r) })

	res, err := newTestController(d, clock, func(o *Options) {
		o.Observers = []RoundObserver{obs}
	}).Collect(context.Background(), 2, feed.Summary)
	require.NoError(t, err)
	assert.True(t, res.Complete)

	require.Len(t, reports, 6)
	assert.Len(t, reports[0].NewItems, 1)
	assert.Equal(t, time.Second, reports[0].Interval)
	for i := 1; i < len(clock.waits); i++ {
		assert.Greater(t, clock.waits[i], clock.waits[i-1])
	}
	assert.Len(t, reports[5].NewItems, 1)
	assert.Equal(t, 2, reports[5].Collected)
}

func TestCollectResetsBackoffAfterProgress(t *testing.T) {
	all := tiles(3)
	d := drivertest.New(testSel.Item, all[:1], all[:1], all[:1], all[:2], all[:2], all)
	clock := &fakeClock{}

	_, err := newTestController(d, clock).Collect(context.Background(), 3, feed.Summary)

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second}, clock.waits)
}

func TestCollectBudgetExhaustedWithoutItems(t *testing.T) {
	d := drivertest.New(testSel.Item)
	clock := &fakeClock{}
	d.LoadingSelector = testSel.Loading
	d.Loading = func() bool { return true }

	res, err := newTestController(d, clock).Collect(context.Background(), 5, feed.Summary)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProgress)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNoProgress))
	require.NotNil(t, res)
	assert.Empty(t, res.Items)
	assert.Equal(t, StopBudgetExhausted, res.Reason)
	assert.Equal(t, 600*time.Second, res.ElapsedWait)
	// the last wait is clipped to what is left of the budget
	assert.Equal(t, 89*time.Second, clock.waits[len(clock.waits)-1])
}

func TestCollectPartialOnBudget(t *testing.T) {
	all := tiles(3)
	d := drivertest.New(testSel.Item, all)
	d.LoadingSelector = testSel.Loading
	d.Loading = func() bool { return true }

	res, err := newTestController(d, &fakeClock{}, func(o *Options) {
		o.Budget = 10 * time.Second
	}).Collect(context.Background(), 5, feed.Summary)

	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	assert.False(t, res.Complete)
	assert.Equal(t, StopBudgetExhausted, res.Reason)
	assert.Equal(t, 10*time.Second, res.ElapsedWait)
}

func TestCollectTrimsToTarget(t *testing.T) {
	all := tiles(8)
	d := drivertest.New(testSel.Item, all)

	res, err := newTestController(d, &fakeClock{}).Collect(context.Background(), 3, feed.Summary)

	require.NoError(t, err)
	assert.Equal(t, []string{postKey(1), postKey(2), postKey(3)}, keys(res))
}

func TestCollectTargetEdgeCases(t *testing.T) {
	d := drivertest.New(testSel.Item, tiles(3))
	c := newTestController(d, &fakeClock{})

	res, err := c.Collect(context.Background(), 0, feed.Summary)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.True(t, res.Complete)
	assert.Equal(t, 0, d.Calls().Discovers)

	_, err = c.Collect(context.Background(), -1, feed.Summary)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestCollectOwnerFilter(t *testing.T) {
	foreign := newTile("https://www.instagram.com/someoneelse/p/zzz/")
	mine := tiles(2)
	d := drivertest.New(testSel.Item, []*drivertest.Node{mine[0], foreign, mine[1]})

	res, err := newTestController(d, &fakeClock{}, func(o *Options) {
		o.OwnerPrefix = feed.OwnerPrefix("", "natgeo")
	}).Collect(context.Background(), 2, feed.Summary)

	require.NoError(t, err)
	assert.Equal(t, []string{postKey(1), postKey(2)}, keys(res))
}

func TestCollectSkipsUnreadableTiles(t *testing.T) {
	blank := drivertest.NewNode("", nil)
	all := tiles(1)
	d := drivertest.New(testSel.Item, []*drivertest.Node{blank, all[0]})

	res, err := newTestController(d, &fakeClock{}).Collect(context.Background(), 1, feed.Summary)

	require.NoError(t, err)
	assert.Equal(t, []string{postKey(1)}, keys(res))
}

func TestCollectToleratesDriverErrors(t *testing.T) {
	all := tiles(2)
	d := drivertest.New(testSel.Item, all)
	d.Errors["Discover"] = errors.New("target closed")
	clock := &fakeClock{}

	res, err := newTestController(d, clock).Collect(context.Background(), 2, feed.Summary)

	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, []time.Duration{time.Second}, clock.waits)
}

func TestCollectCancelled(t *testing.T) {
	all := tiles(2)
	d := drivertest.New(testSel.Item, all[:1])
	ctx, cancel := context.WithCancel(context.Background())
	clock := &fakeClock{}

	obs := RoundObserverFunc(func(_ context.Context, r RoundReport) {
		if r.Round == 3 {
			cancel()
		}
	})

	res, err := newTestController(d, clock, func(o *Options) {
		o.Observers = []RoundObserver{obs}
	}).Collect(ctx, 2, feed.Summary)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, StopCancelled, res.Reason)
	assert.Equal(t, []string{postKey(1)}, keys(res))
	assert.Equal(t, 3, res.Rounds)
}

func TestNewControllerDefaults(t *testing.T) {
	d := drivertest.New(testSel.Item)
	c := NewController(d, Options{})

	assert.Equal(t, 600*time.Second, c.budget)
	assert.Equal(t, 600, c.recoveryOffset)
	assert.Equal(t, time.Second, c.scheduler.Min)
	assert.Equal(t, testSel, c.sel)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Crawl
	cfg.BackoffUnit = 100 * time.Millisecond
	cfg.TimeoutBudget = 50
	cfg.DetailRetryLimit = 4

	opts := OptionsFromConfig(&cfg)

	assert.Equal(t, 5*time.Second, opts.Budget)
	assert.Equal(t, 100*time.Millisecond, opts.BackoffUnit)
	assert.Equal(t, 4, opts.DetailRetryLimit)
}
