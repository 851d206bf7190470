package statsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// StatsGetter fetches the stats of one address.
type StatsGetter interface {
	GetMinerStats(ctx context.Context, address string) (*MinerStats, error)
}

// FetchResult summarizes a parallel fetch.
type FetchResult struct {
	Stats     []MinerStats // successful responses, in input address order
	Succeeded int
	Failed    int
}

// Fetcher issues per-address requests in parallel, bounded by a worker limit,
// with a minimum delay between request submissions.
type Fetcher struct {
	getter  StatsGetter
	workers int
	delay   time.Duration
	logger  *zap.Logger
}

// NewFetcher creates a Fetcher. workers <= 0 means 1; delay <= 0 disables pacing.
func NewFetcher(getter StatsGetter, workers int, delay time.Duration, logger *zap.Logger) *Fetcher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{getter: getter, workers: workers, delay: delay, logger: logger}
}

// FetchAll fetches stats for every address. Per-address failures are logged and
// counted; only context cancellation aborts the fetch.
func (f *Fetcher) FetchAll(ctx context.Context, addresses []string) (*FetchResult, error) {
	limit := rate.Inf
	if f.delay > 0 {
		limit = rate.Every(f.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	results := make([]*MinerStats, len(addresses))
	var done, failed atomic.Int64
	total := len(addresses)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, addr := range addresses {
		if err := limiter.Wait(gctx); err != nil {
			break
		}

		g.Go(func() error {
			stats, err := f.getter.GetMinerStats(gctx, addr)
			n := done.Add(1)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				f.logger.Warn("fetch stats failed", zap.String("address", addr), zap.Error(err))
			} else {
				results[i] = stats
			}

			if n%10 == 0 || int(n) == total {
				f.logger.Info("fetch progress",
					zap.Int64("done", n),
					zap.Int("total", total),
					zap.Int64("failed", failed.Load()),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &FetchResult{Failed: int(failed.Load())}
	for _, r := range results {
		if r != nil {
			out.Stats = append(out.Stats, *r)
		}
	}
	out.Succeeded = len(out.Stats)
	return out, nil
}

// WriteDump writes stats as a JSON array; each element is the response object
// with its "address" field set to the queried address.
func WriteDump(w io.Writer, stats []MinerStats) error {
	items := make([]map[string]json.RawMessage, 0, len(stats))
	for _, s := range stats {
		obj := make(map[string]json.RawMessage)
		if len(s.Data) > 0 {
			if err := json.Unmarshal(s.Data, &obj); err != nil {
				return fmt.Errorf("payload of %s is not an object: %w", s.Address, err)
			}
		}
		addr, err := json.Marshal(s.Address)
		if err != nil {
			return err
		}
		obj["address"] = addr
		items = append(items, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// ReadDump reads a dump written by WriteDump.
func ReadDump(r io.Reader) ([]MinerStats, error) {
	var items []json.RawMessage
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode stats dump: %w", err)
	}

	out := make([]MinerStats, 0, len(items))
	for i, raw := range items {
		var head struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if head.Address == "" {
			return nil, fmt.Errorf("item %d: %w", i, errMissingAddress)
		}
		out = append(out, MinerStats{Address: head.Address, Data: raw})
	}
	return out, nil
}

var errMissingAddress = errors.New("missing address")
