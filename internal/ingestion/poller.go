package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/observability"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/storage"
)

// DefaultStream is the cursor name used when none is configured.
const DefaultStream = "contracts"

// Poller pulls contract events with getEvents into the activity store,
// resuming from a cursor persisted per stream.
type Poller struct {
	rpc         soroban.RPCClient
	codec       soroban.Codec
	store       storage.ActivityStore
	cursors     storage.EventCursorStore
	names       Namer
	contractIDs []string
	stream      string
	startLedger uint32
	interval    time.Duration
	pageSize    int
	now         func() time.Time
	logger      *log.Logger
}

// PollerOptions contains configuration for creating a Poller.
type PollerOptions struct {
	RPC         soroban.RPCClient
	Codec       soroban.Codec
	Store       storage.ActivityStore
	Cursors     storage.EventCursorStore
	Names       Namer
	ContractIDs []string
	Stream      string        // Default: DefaultStream
	StartLedger uint32        // first ledger when no cursor exists; 0 means the latest ledger
	Interval    time.Duration // Default: 5s
	PageSize    int           // Default: 100
	Now         func() time.Time
	Logger      *log.Logger
}

// NewPoller creates a new event poller.
func NewPoller(opts PollerOptions) *Poller {
	codec := opts.Codec
	if codec == nil {
		codec = soroban.JSONCodec{}
	}
	stream := opts.Stream
	if stream == "" {
		stream = DefaultStream
	}
	interval := opts.Interval
	if interval == 0 {
		interval = 5 * time.Second
	}
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = 100
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Poller{
		rpc:         opts.RPC,
		codec:       codec,
		store:       opts.Store,
		cursors:     opts.Cursors,
		names:       opts.Names,
		contractIDs: opts.ContractIDs,
		stream:      stream,
		startLedger: opts.StartLedger,
		interval:    interval,
		pageSize:    pageSize,
		now:         now,
		logger:      logger,
	}
}

// Run polls until ctx is cancelled. Poll errors are logged and retried on
// the next tick.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Printf("Event poller started, stream: %s, contracts: %d, interval: %v", p.stream, len(p.contractIDs), p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if n, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Printf("Event poll failed: %v", err)
		} else if n > 0 {
			p.logger.Printf("Stored %d activity events", n)
		}

		select {
		case <-ctx.Done():
			p.logger.Println("Event poller stopping...")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce reads every event available past the cursor and returns the
// number of new events stored. The cursor advances after each stored page,
// so a failure part way resumes where it stopped.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	if len(p.contractIDs) == 0 {
		return 0, nil
	}

	cursor, err := p.cursors.Get(ctx, p.stream)
	if errors.Is(err, storage.ErrNotFound) {
		cursor, err = p.initialCursor(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor %s: %w", p.stream, err)
	}

	total := 0
	for {
		prevCursor, prevLedger := cursor.Cursor, cursor.Ledger
		req := soroban.EventsRequest{
			Filters:    []soroban.EventFilter{{Type: "contract", ContractIDs: p.contractIDs}},
			Pagination: &soroban.Pagination{Cursor: cursor.Cursor, Limit: p.pageSize},
		}
		if cursor.Cursor == "" {
			req.StartLedger = cursor.Ledger
		}

		res, err := p.rpc.GetEvents(ctx, req)
		if err != nil {
			return total, fmt.Errorf("get events: %w", err)
		}
		observability.UpdateLatestLedger(res.LatestLedger)

		events := make([]*domain.ActivityEvent, 0, len(res.Events))
		for _, ev := range res.Events {
			if !ev.InSuccessfulContractCall {
				continue
			}
			events = append(events, ToActivity(p.codec, p.names, ev))
		}
		SortActivity(events)

		if len(events) > 0 {
			n, err := p.store.InsertBulk(ctx, events)
			if err != nil {
				return total, fmt.Errorf("store events: %w", err)
			}
			total += n
			observability.RecordEventsStored(n)
			cursor.Ledger = events[len(events)-1].Ledger
		}

		if res.Cursor != "" {
			cursor.Cursor = res.Cursor
		}
		cursor.UpdatedAt = p.now().UnixMilli()
		if err := p.cursors.Set(ctx, cursor); err != nil {
			return total, fmt.Errorf("save cursor %s: %w", p.stream, err)
		}

		if len(res.Events) < p.pageSize {
			break
		}
		// A full page that moved neither cursor nor ledger would be
		// requested again unchanged.
		if cursor.Cursor == prevCursor && cursor.Ledger == prevLedger {
			p.logger.Printf("Events for %s stalled at ledger %d, stopping this poll", p.stream, cursor.Ledger)
			break
		}
	}

	observability.RecordPollSuccess(p.now().Unix())
	return total, nil
}

func (p *Poller) initialCursor(ctx context.Context) (*domain.EventCursor, error) {
	start := p.startLedger
	if start == 0 {
		latest, err := p.rpc.GetLatestLedger(ctx)
		if err != nil {
			return nil, fmt.Errorf("get latest ledger: %w", err)
		}
		start = latest.Sequence
	}
	p.logger.Printf("No cursor for stream %s, starting at ledger %d", p.stream, start)
	return &domain.EventCursor{Stream: p.stream, Ledger: start}, nil
}
