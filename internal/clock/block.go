package clock

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// HeightSource reports the chain head. *chain.Client satisfies it.
type HeightSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// BlockOptions tunes the RPC retry loop.
type BlockOptions struct {
	MaxRetries int
	Backoff    time.Duration
	Logger     *zap.Logger
}

// Block uses the latest block height as logical time.
type Block struct {
	src        HeightSource
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewBlock builds a block-height clock over src.
func NewBlock(src HeightSource, opts BlockOptions) *Block {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Block{
		src:        src,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		logger:     logger,
	}
}

// Now returns the latest block number, retrying transient RPC failures.
func (b *Block) Now(ctx context.Context) (uint64, error) {
	var height uint64
	err := withRetry(ctx, b.maxRetries, b.backoff, func(ctx context.Context) error {
		h, err := b.src.LatestBlockNumber(ctx)
		if err != nil {
			b.logger.Debug("latest block number failed", zap.Error(err))
			return err
		}
		height = h
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("latest block number: %w", err)
	}
	return height, nil
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
