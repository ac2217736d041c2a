package amm

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ammEngine/internal/model"
)

type testClock struct {
	now atomic.Uint64
	err error
}

func (c *testClock) Now(context.Context) (uint64, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.now.Load(), nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (s *recordingSink) Emit(event model.Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

const future = 1_000_000

func newTestEngine(t testing.TB, opts ...Option) (*Engine, *testClock) {
	t.Helper()
	clk := &testClock{}
	clk.now.Store(1)
	return New(clk, opts...), clk
}

func seedPool(t testing.TB, e *Engine, x, y uint64) model.PoolID {
	t.Helper()
	id, err := e.CreatePool(context.Background(), "A", "B", 30)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if _, err := e.AddLiquidity(context.Background(), AddLiquidityRequest{
		PoolID:         id,
		Provider:       "alice",
		AmountXDesired: x,
		AmountYDesired: y,
		Deadline:       future,
	}); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	return id
}

func product(p model.Pool) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(p.ReserveX), new(big.Int).SetUint64(p.ReserveY))
}

func TestCreatePoolUniqueness(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	id, err := e.CreatePool(ctx, "A", "B", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 0 {
		t.Fatalf("first pool id mismatch: %d != 0", id)
	}

	_, err = e.CreatePool(ctx, "B", "A", 30)
	if !errors.Is(err, ErrPoolAlreadyExists) || CodeOf(err) != 101 {
		t.Fatalf("expected pool already exists (101), got %v", err)
	}

	id, err = e.CreatePool(ctx, "B", "A", 5)
	if err != nil {
		t.Fatalf("unexpected error for new fee tier: %v", err)
	}
	if id != 1 {
		t.Fatalf("second pool id mismatch: %d != 1", id)
	}

	pool, err := e.GetPool(1)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.AssetX != "A" || pool.AssetY != "B" {
		t.Fatalf("pair not canonical: %s/%s", pool.AssetX, pool.AssetY)
	}
	if pool.ReserveX != 0 || pool.ReserveY != 0 || pool.TotalShares != 0 {
		t.Fatalf("new pool not empty: %+v", pool)
	}
}

func TestCreatePoolValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	cases := []struct {
		assetX string
		assetY string
		feeBps uint32
		want   error
	}{
		{"A", "A", 30, ErrInvalidAssetPair},
		{"", "B", 30, ErrInvalidAssetPair},
		{"A", "B", 10_000, ErrInvalidFee},
	}
	for _, tc := range cases {
		if _, err := e.CreatePool(ctx, tc.assetX, tc.assetY, tc.feeBps); !errors.Is(err, tc.want) {
			t.Fatalf("%s/%s:%d: expected %v, got %v", tc.assetX, tc.assetY, tc.feeBps, tc.want, err)
		}
	}
	if len(e.ListPools()) != 0 {
		t.Fatalf("rejected pools were registered")
	}
	if _, err := e.GetPool(7); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
}

func TestFindPool(t *testing.T) {
	e, _ := newTestEngine(t)
	id := seedPool(t, e, 1000, 2000)

	pool, err := e.FindPool("B", "A", 30)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if pool.ID != id {
		t.Fatalf("pool id mismatch: %d != %d", pool.ID, id)
	}
	if _, err := e.FindPool("A", "B", 5); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
}

func TestDeadlineBoundary(t *testing.T) {
	ctx := context.Background()
	e, clk := newTestEngine(t)
	id := seedPool(t, e, 10_000, 10_000)
	clk.now.Store(5)

	_, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "bob", AmountXDesired: 100, AmountYDesired: 100, Deadline: 0,
	})
	var deadlineErr *DeadlineError
	if !errors.As(err, &deadlineErr) || CodeOf(err) != 106 {
		t.Fatalf("expected deadline expired (106), got %v", err)
	}
	if deadlineErr.Clock != 5 || deadlineErr.Deadline != 0 {
		t.Fatalf("deadline detail mismatch: %+v", deadlineErr)
	}

	_, err = e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 100, Deadline: 0})
	if CodeOf(err) != 106 {
		t.Fatalf("expected deadline expired (106) for swap, got %v", err)
	}
	_, err = e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 100, Deadline: 4})
	if CodeOf(err) != 106 {
		t.Fatalf("expected deadline expired (106) one tick late, got %v", err)
	}

	_, err = e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PoolID: id, Provider: "alice", Shares: 100, Deadline: 0})
	if CodeOf(err) != 106 {
		t.Fatalf("expected deadline expired (106) for removal, got %v", err)
	}
	_, err = e.SwapExactOut(ctx, SwapExactOutRequest{PoolID: id, AssetIn: "A", AmountOut: 100, AmountInMax: 1000, Deadline: 0})
	if CodeOf(err) != 106 {
		t.Fatalf("expected deadline expired (106) for exact-out swap, got %v", err)
	}
	if p, _ := e.GetPool(id); p.ReserveX != 10_000 || p.ReserveY != 10_000 || p.TotalShares != 10_000 {
		t.Fatalf("expired calls changed the pool: %+v", p)
	}

	if _, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "bob", AmountXDesired: 100, AmountYDesired: 100, Deadline: 5,
	}); err != nil {
		t.Fatalf("deadline equal to clock rejected: %v", err)
	}
	if _, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 100, Deadline: 5}); err != nil {
		t.Fatalf("deadline equal to clock rejected for swap: %v", err)
	}
}

// gatedClock blocks the first Now call until release is closed.
type gatedClock struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (c *gatedClock) Now(context.Context) (uint64, error) {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.entered)
		<-c.release
	}
	return 1, nil
}

func TestPoolCreatedIsFirstEvent(t *testing.T) {
	ctx := context.Background()
	clk := &gatedClock{entered: make(chan struct{}), release: make(chan struct{})}
	sink := &recordingSink{}
	e := New(clk, WithEventSink(sink))

	done := make(chan error, 1)
	go func() {
		_, err := e.CreatePool(ctx, "A", "B", 30)
		done <- err
	}()

	<-clk.entered
	if _, err := e.FindPool("A", "B", 30); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("pool visible before its creation event: %v", err)
	}
	close(clk.release)
	if err := <-done; err != nil {
		t.Fatalf("create pool: %v", err)
	}

	pool, err := e.FindPool("A", "B", 30)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if _, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: pool.ID, Provider: "alice", AmountXDesired: 100, AmountYDesired: 100, Deadline: future,
	}); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	var kinds []string
	for _, ev := range sink.events {
		kinds = append(kinds, ev.Kind)
	}
	want := []string{model.EventPoolCreated, model.EventLiquidityAdded}
	if !reflect.DeepEqual(kinds, want) || sink.events[0].Seq != 0 {
		t.Fatalf("event order mismatch: %v", kinds)
	}
}

func TestDeadlineCheckedBeforePoolLookup(t *testing.T) {
	e, clk := newTestEngine(t)
	clk.now.Store(10)

	_, err := e.SwapExactIn(context.Background(), SwapExactInRequest{PoolID: 42, AssetIn: "A", AmountIn: 1, Deadline: 9})
	if !errors.Is(err, ErrDeadlineExpired) {
		t.Fatalf("expected deadline expired, got %v", err)
	}
}

func TestClockUnavailable(t *testing.T) {
	e, clk := newTestEngine(t)
	id := seedPool(t, e, 10_000, 10_000)
	clk.err = errors.New("rpc down")

	_, err := e.SwapExactIn(context.Background(), SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 100, Deadline: future})
	if CodeOf(err) != 115 {
		t.Fatalf("expected clock unavailable (115), got %v", err)
	}
}

func TestEndToEndSlippage(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	id, err := e.CreatePool(ctx, "A", "B", 30)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	res, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "alice", AmountXDesired: 10_000, AmountYDesired: 10_000, Deadline: future,
	})
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if want := (AddLiquidityResult{AmountX: 10_000, AmountY: 10_000, Shares: 10_000}); res != want {
		t.Fatalf("deposit mismatch: %+v != %+v", res, want)
	}

	_, err = e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 100, AmountOutMin: 1000, Deadline: future})
	if !errors.Is(err, ErrSlippageExceeded) || CodeOf(err) != 105 {
		t.Fatalf("expected slippage exceeded (105), got %v", err)
	}
	var slip *SlippageError
	if !errors.As(err, &slip) || slip.Computed != 98 || slip.Limit != 1000 {
		t.Fatalf("slippage detail mismatch: %v", err)
	}

	// One above the true output must still fail.
	if _, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 100, AmountOutMin: 99, Deadline: future}); CodeOf(err) != 105 {
		t.Fatalf("expected slippage exceeded at min 99, got %v", err)
	}

	pool, err := e.GetPool(id)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.ReserveX != 10_000 || pool.ReserveY != 10_000 {
		t.Fatalf("rejected swap mutated reserves: %d/%d", pool.ReserveX, pool.ReserveY)
	}

	out, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 100, AmountOutMin: 98, Deadline: future})
	if err != nil {
		t.Fatalf("swap at exact min: %v", err)
	}
	if out != 98 {
		t.Fatalf("amount out mismatch: %d != 98", out)
	}
	pool, _ = e.GetPool(id)
	if pool.ReserveX != 10_100 || pool.ReserveY != 9_902 {
		t.Fatalf("reserves mismatch: %d/%d", pool.ReserveX, pool.ReserveY)
	}
}

func TestSwapExactOut(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := seedPool(t, e, 10_000, 10_000)

	_, err := e.SwapExactOut(ctx, SwapExactOutRequest{PoolID: id, AssetIn: "A", AmountOut: 100, AmountInMax: 101, Deadline: future})
	var slip *SlippageError
	if !errors.As(err, &slip) || !slip.Maximum || slip.Computed != 102 || slip.Limit != 101 {
		t.Fatalf("expected slippage above maximum, got %v", err)
	}

	in, err := e.SwapExactOut(ctx, SwapExactOutRequest{PoolID: id, AssetIn: "A", AmountOut: 100, AmountInMax: 102, Deadline: future})
	if err != nil {
		t.Fatalf("swap exact out: %v", err)
	}
	if in != 102 {
		t.Fatalf("amount in mismatch: %d != 102", in)
	}
	pool, _ := e.GetPool(id)
	if pool.ReserveX != 10_102 || pool.ReserveY != 9_900 {
		t.Fatalf("reserves mismatch: %d/%d", pool.ReserveX, pool.ReserveY)
	}

	_, err = e.SwapExactOut(ctx, SwapExactOutRequest{PoolID: id, AssetIn: "B", AmountOut: 10_102, AmountInMax: ^uint64(0), Deadline: future})
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity when draining, got %v", err)
	}
}

func TestSwapUnknownAsset(t *testing.T) {
	e, _ := newTestEngine(t)
	id := seedPool(t, e, 10_000, 10_000)

	_, err := e.SwapExactIn(context.Background(), SwapExactInRequest{PoolID: id, AssetIn: "C", AmountIn: 100, Deadline: future})
	if !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected invalid asset, got %v", err)
	}
}

func TestSwapOnEmptyPool(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id, _ := e.CreatePool(ctx, "A", "B", 30)

	_, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 100, Deadline: future})
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}

func TestAddLiquidityPairsAtReserveRatio(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := seedPool(t, e, 10_000, 10_000)

	res, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "bob", AmountXDesired: 500, AmountYDesired: 1000, Deadline: future,
	})
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if want := (AddLiquidityResult{AmountX: 500, AmountY: 500, Shares: 500}); res != want {
		t.Fatalf("deposit mismatch: %+v != %+v", res, want)
	}

	res, err = e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "bob", AmountXDesired: 1000, AmountYDesired: 500, Deadline: future,
	})
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if want := (AddLiquidityResult{AmountX: 500, AmountY: 500, Shares: 500}); res != want {
		t.Fatalf("deposit mismatch: %+v != %+v", res, want)
	}

	pos, err := e.Position(id, "bob")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Shares != 1000 {
		t.Fatalf("position mismatch: %d != 1000", pos.Shares)
	}

	_, err = e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "bob", AmountXDesired: 500, AmountYDesired: 1000, AmountYMin: 600, Deadline: future,
	})
	var slip *SlippageError
	if !errors.As(err, &slip) || slip.Field != "amount_y" || slip.Computed != 500 {
		t.Fatalf("expected slippage on amount_y, got %v", err)
	}
	_, err = e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "bob", AmountXDesired: 1000, AmountYDesired: 500, AmountXMin: 501, Deadline: future,
	})
	if !errors.As(err, &slip) || slip.Field != "amount_x" {
		t.Fatalf("expected slippage on amount_x, got %v", err)
	}

	pool, _ := e.GetPool(id)
	if pool.ReserveX != 11_000 || pool.ReserveY != 11_000 || pool.TotalShares != 11_000 {
		t.Fatalf("pool mismatch after rejected deposits: %+v", pool)
	}
}

func TestAddLiquidityInitialDust(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id, _ := e.CreatePool(ctx, "A", "B", 30)

	_, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "alice", AmountXDesired: 1, AmountYDesired: 0, Deadline: future,
	})
	if !errors.Is(err, ErrInsufficientInitialLiquidity) || CodeOf(err) != 111 {
		t.Fatalf("expected insufficient initial liquidity, got %v", err)
	}

	_, err = e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, AmountXDesired: 1, AmountYDesired: 1, Deadline: future,
	})
	if !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("expected invalid provider, got %v", err)
	}

	res, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "alice", AmountXDesired: 4, AmountYDesired: 9, Deadline: future,
	})
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if res.Shares != 6 {
		t.Fatalf("initial shares mismatch: %d != 6", res.Shares)
	}
}

func TestRemoveLiquidity(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := seedPool(t, e, 10_000, 10_000)

	if _, err := e.AddLiquidity(ctx, AddLiquidityRequest{
		PoolID: id, Provider: "bob", AmountXDesired: 5000, AmountYDesired: 5000, Deadline: future,
	}); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	_, err := e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PoolID: id, Provider: "bob", Shares: 6000, Deadline: future})
	if !errors.Is(err, ErrInsufficientShares) || CodeOf(err) != 109 {
		t.Fatalf("expected insufficient shares, got %v", err)
	}
	_, err = e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PoolID: id, Provider: "carol", Shares: 1, Deadline: future})
	if !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected insufficient shares for unknown provider, got %v", err)
	}
	_, err = e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PoolID: id, Provider: "bob", Shares: 5000, AmountXMin: 5001, Deadline: future})
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected slippage exceeded, got %v", err)
	}
	_, err = e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PoolID: id, Provider: "bob", Shares: 0, Deadline: future})
	if !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected zero amount, got %v", err)
	}

	res, err := e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PoolID: id, Provider: "bob", Shares: 5000, AmountXMin: 5000, AmountYMin: 5000, Deadline: future})
	if err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}
	if want := (RemoveLiquidityResult{AmountX: 5000, AmountY: 5000}); res != want {
		t.Fatalf("withdrawal mismatch: %+v != %+v", res, want)
	}
	pos, _ := e.Position(id, "bob")
	if pos.Shares != 0 {
		t.Fatalf("position not burned: %d", pos.Shares)
	}
}

func TestFullWithdrawalDrainsReserves(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := seedPool(t, e, 123_457, 987_653)

	g := lcg(7)
	for i := 0; i < 50; i++ {
		asset := "A"
		if i%2 == 1 {
			asset = "B"
		}
		if _, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: asset, AmountIn: 1 + g.next()%5000, Deadline: future}); err != nil {
			t.Fatalf("swap %d: %v", i, err)
		}
	}

	pos, _ := e.Position(id, "alice")
	before, _ := e.GetPool(id)
	res, err := e.RemoveLiquidity(ctx, RemoveLiquidityRequest{PoolID: id, Provider: "alice", Shares: pos.Shares, Deadline: future})
	if err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}
	if res.AmountX != before.ReserveX || res.AmountY != before.ReserveY {
		t.Fatalf("withdrawal %+v does not match reserves %d/%d", res, before.ReserveX, before.ReserveY)
	}

	after, _ := e.GetPool(id)
	if after.ReserveX != 0 || after.ReserveY != 0 || after.TotalShares != 0 {
		t.Fatalf("pool not drained: %+v", after)
	}

	// A drained pool accepts a fresh initial deposit at a new price.
	res2, err := e.AddLiquidity(ctx, AddLiquidityRequest{PoolID: id, Provider: "bob", AmountXDesired: 100, AmountYDesired: 400, Deadline: future})
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if res2.Shares != 200 {
		t.Fatalf("reseed shares mismatch: %d != 200", res2.Shares)
	}
}

func TestInvariantNeverDecreases(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := seedPool(t, e, 1_000_000_007, 3_000_000_019)

	g := lcg(99)
	prev, _ := e.GetPool(id)
	for i := 0; i < 500; i++ {
		asset := "A"
		if g.next()%2 == 0 {
			asset = "B"
		}
		amount := 1 + g.next()%10_000_000
		var err error
		if i%3 == 0 {
			_, err = e.SwapExactOut(ctx, SwapExactOutRequest{PoolID: id, AssetIn: asset, AmountOut: amount, AmountInMax: ^uint64(0), Deadline: future})
		} else {
			_, err = e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: asset, AmountIn: amount, Deadline: future})
		}
		if err != nil {
			t.Fatalf("swap %d: %v", i, err)
		}
		cur, _ := e.GetPool(id)
		if product(cur).Cmp(product(prev)) < 0 {
			t.Fatalf("swap %d: k decreased from %s to %s", i, product(prev), product(cur))
		}
		prev = cur
	}
}

func TestSwapStats(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := seedPool(t, e, 1_000_000, 1_000_000)

	out, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 10_000, Deadline: future})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out != 9871 {
		t.Fatalf("amount out mismatch: %d != 9871", out)
	}

	pool, _ := e.GetPool(id)
	want := model.PoolStats{SwapCount: 1, VolumeX: "10000", VolumeY: "9871", FeesX: "30", FeesY: "0"}
	if !reflect.DeepEqual(pool.Stats, want) {
		t.Fatalf("stats mismatch: %+v != %+v", pool.Stats, want)
	}
}

func TestEventsFollowCommits(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	stamp := time.Unix(1_700_000_000, 0)
	e, clk := newTestEngine(t, WithEventSink(sink), WithWallClock(func() time.Time { return stamp }))
	id := seedPool(t, e, 10_000, 10_000)
	clk.now.Store(3)

	if _, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "B", AmountIn: 100, Deadline: future}); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if _, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "B", AmountIn: 100, AmountOutMin: 500, Deadline: future}); err == nil {
		t.Fatalf("expected slippage failure")
	}

	kinds := make([]string, 0, len(sink.events))
	for i, ev := range sink.events {
		if ev.Seq != uint64(i) {
			t.Fatalf("event %d has seq %d", i, ev.Seq)
		}
		kinds = append(kinds, ev.Kind)
	}
	wantKinds := []string{model.EventPoolCreated, model.EventLiquidityAdded, model.EventSwap}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Fatalf("kinds mismatch: %v != %v", kinds, wantKinds)
	}

	swap := sink.events[2]
	if swap.Clock != 3 || swap.Timestamp != 1_700_000_000 {
		t.Fatalf("swap clock/timestamp mismatch: %d/%d", swap.Clock, swap.Timestamp)
	}
	if swap.Pool.ReserveX != 9_902 || swap.Pool.ReserveY != 10_100 {
		t.Fatalf("post-commit reserves mismatch: %+v", swap.Pool)
	}
	data, ok := swap.Data.(model.SwapData)
	if !ok {
		t.Fatalf("swap payload type %T", swap.Data)
	}
	want := model.SwapData{AssetIn: "B", AssetOut: "A", AmountIn: 100, AmountOut: 98, Fee: 0}
	if data != want {
		t.Fatalf("swap payload mismatch: %+v != %+v", data, want)
	}
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	e, clk := newTestEngine(t)
	id := seedPool(t, e, 50_000, 80_000)
	if _, err := e.CreatePool(ctx, "C", "A", 100); err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if _, err := e.AddLiquidity(ctx, AddLiquidityRequest{PoolID: id, Provider: "bob", AmountXDesired: 5_000, AmountYDesired: 8_000, Deadline: future}); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if _, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 1_234, Deadline: future}); err != nil {
		t.Fatalf("swap: %v", err)
	}

	snap, err := e.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.NextSeq != 5 {
		t.Fatalf("next seq mismatch: %d != 5", snap.NextSeq)
	}

	restored, err := Restore(snap, clk)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(restored.ListPools(), e.ListPools()) {
		t.Fatalf("pools mismatch after restore:\n%+v\n%+v", restored.ListPools(), e.ListPools())
	}
	for _, provider := range []string{"alice", "bob"} {
		got, _ := restored.Position(id, provider)
		want, _ := e.Position(id, provider)
		if got != want {
			t.Fatalf("position %s mismatch: %+v != %+v", provider, got, want)
		}
	}

	// Both engines keep producing identical results.
	a, errA := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "B", AmountIn: 777, Deadline: future})
	b, errB := restored.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: "B", AmountIn: 777, Deadline: future})
	if errA != nil || errB != nil || a != b {
		t.Fatalf("diverged after restore: %d/%v vs %d/%v", a, errA, b, errB)
	}
	if _, err := restored.CreatePool(ctx, "A", "C", 100); !errors.Is(err, ErrPoolAlreadyExists) {
		t.Fatalf("restored registry lost key, got %v", err)
	}
}

func TestRestoreRejectsInconsistentSnapshot(t *testing.T) {
	clk := &testClock{}
	base := model.Snapshot{
		Pools: []model.Pool{{ID: 0, AssetX: "A", AssetY: "B", FeeBps: 30, ReserveX: 100, ReserveY: 100, TotalShares: 100}},
		Positions: []model.LiquidityPosition{
			{PoolID: 0, Provider: "alice", Shares: 60},
			{PoolID: 0, Provider: "bob", Shares: 40},
		},
	}
	if _, err := Restore(base, clk); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	short := base
	short.Positions = base.Positions[:1]
	if _, err := Restore(short, clk); err == nil {
		t.Fatalf("expected error for share sum mismatch")
	}

	gap := base
	gap.Pools = []model.Pool{{ID: 1, AssetX: "A", AssetY: "B", FeeBps: 30}}
	gap.Positions = nil
	if _, err := Restore(gap, clk); err == nil {
		t.Fatalf("expected error for id gap")
	}

	dup := base
	dup.Pools = append([]model.Pool{}, base.Pools[0], model.Pool{ID: 1, AssetX: "A", AssetY: "B", FeeBps: 30})
	if _, err := Restore(dup, clk); !errors.Is(err, ErrPoolAlreadyExists) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}

	unowned := base
	unowned.Pools = []model.Pool{{ID: 0, AssetX: "A", AssetY: "B", FeeBps: 30, ReserveX: 100, ReserveY: 7}}
	unowned.Positions = nil
	if _, err := Restore(unowned, clk); err == nil {
		t.Fatalf("expected error for reserves without shares")
	}

	orphan := base
	orphan.Positions = append([]model.LiquidityPosition{}, base.Positions...)
	orphan.Positions = append(orphan.Positions, model.LiquidityPosition{PoolID: 3, Provider: "carol", Shares: 1})
	if _, err := Restore(orphan, clk); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
}

func TestConcurrentSwapsSerializePerPool(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	id := seedPool(t, e, 1_000_000_000, 1_000_000_000)
	start, _ := e.GetPool(id)

	var (
		wg               sync.WaitGroup
		inX, outX        atomic.Uint64
		inY, outY        atomic.Uint64
		failures         atomic.Int64
		workers, perWork = 8, 50
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				asset := "A"
				if (w+i)%2 == 1 {
					asset = "B"
				}
				amount := uint64(1000 + w*100 + i)
				out, err := e.SwapExactIn(ctx, SwapExactInRequest{PoolID: id, AssetIn: asset, AmountIn: amount, Deadline: future})
				if err != nil {
					failures.Add(1)
					continue
				}
				if asset == "A" {
					inX.Add(amount)
					outY.Add(out)
				} else {
					inY.Add(amount)
					outX.Add(out)
				}
			}
		}(w)
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d swaps failed", failures.Load())
	}
	end, _ := e.GetPool(id)
	if end.ReserveX != start.ReserveX+inX.Load()-outX.Load() {
		t.Fatalf("reserve x drifted: %d", end.ReserveX)
	}
	if end.ReserveY != start.ReserveY+inY.Load()-outY.Load() {
		t.Fatalf("reserve y drifted: %d", end.ReserveY)
	}
	if end.Stats.SwapCount != uint64(workers*perWork) {
		t.Fatalf("swap count mismatch: %d", end.Stats.SwapCount)
	}
	if product(end).Cmp(product(start)) < 0 {
		t.Fatalf("k decreased under concurrency")
	}
}

func TestSpotPrice(t *testing.T) {
	yPerX, xPerY := SpotPrice(model.Pool{ReserveX: 10_000, ReserveY: 20_000})
	if yPerX != "2.000000000000000000" || xPerY != "0.500000000000000000" {
		t.Fatalf("spot price mismatch: %s %s", yPerX, xPerY)
	}
	yPerX, xPerY = SpotPrice(model.Pool{})
	if yPerX != "0" || xPerY != "0" {
		t.Fatalf("empty pool price mismatch: %s %s", yPerX, xPerY)
	}
}

func BenchmarkSwapExactIn(b *testing.B) {
	ctx := context.Background()
	e, _ := newTestEngine(b)
	id := seedPool(b, e, 1<<40, 1<<40)
	req := SwapExactInRequest{PoolID: id, AssetIn: "A", AmountIn: 1000, Deadline: future}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%2 == 0 {
			req.AssetIn = "A"
		} else {
			req.AssetIn = "B"
		}
		if _, err := e.SwapExactIn(ctx, req); err != nil {
			b.Fatalf("swap: %v", err)
		}
	}
}
