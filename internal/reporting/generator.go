package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/storage"
)

// Namer resolves a contract id to a short contract name.
type Namer interface {
	Name(contractID string) string
}

// Generator produces reports from stored data.
type Generator struct {
	journal  storage.OperationJournal
	activity storage.ActivityStore
	names    Namer
	network  string
	now      func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(journal storage.OperationJournal, activity storage.ActivityStore, names Namer, network string) *Generator {
	return &Generator{
		journal:  journal,
		activity: activity,
		names:    names,
		network:  network,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report over the most recent limit operations and
// events. A limit of 0 includes everything.
func (g *Generator) Generate(ctx context.Context, limit int) (*Report, error) {
	records, err := g.journal.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	events, err := g.activity.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	ops := g.operationRows(records)
	activity := activityRows(events)

	return &Report{
		GeneratedAt:  g.now(),
		Network:      g.network,
		Summary:      summarize(ops, activity),
		Operations:   ops,
		Activity:     activity,
		ActionCounts: countActions(activity),
	}, nil
}

func (g *Generator) operationRows(records []*domain.OperationRecord) []OperationRow {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})

	rows := make([]OperationRow, len(records))
	for i, rec := range records {
		rows[i] = OperationRow{
			ID:           rec.ID,
			Contract:     g.names.Name(rec.ContractID),
			Method:       rec.Method,
			Source:       rec.Source,
			State:        string(rec.State),
			TxHash:       rec.TxHash,
			Ledger:       rec.Ledger,
			ErrorKind:    string(rec.ErrorKind),
			ErrorMessage: rec.ErrorMessage,
			CreatedAt:    msTime(rec.CreatedAt),
			UpdatedAt:    msTime(rec.UpdatedAt),
		}
	}
	return rows
}

func activityRows(events []*domain.ActivityEvent) []ActivityRow {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Ledger != events[j].Ledger {
			return events[i].Ledger < events[j].Ledger
		}
		return events[i].EventID < events[j].EventID
	})

	rows := make([]ActivityRow, len(events))
	for i, e := range events {
		rows[i] = ActivityRow{
			Ledger:   e.Ledger,
			ClosedAt: msTime(e.LedgerClosedAt),
			Contract: e.Contract,
			Action:   e.Action(),
			Topics:   e.Topics,
			Value:    e.Value,
			TxHash:   e.TxHash,
			EventID:  e.EventID,
		}
	}
	return rows
}

func summarize(ops []OperationRow, activity []ActivityRow) Summary {
	s := Summary{
		TotalOperations: len(ops),
		TotalEvents:     len(activity),
	}
	for _, op := range ops {
		switch domain.OperationState(op.State) {
		case domain.StateConfirmed:
			s.Confirmed++
		case domain.StateRejected:
			s.Rejected++
		case domain.StateTimedOut:
			s.TimedOut++
		default:
			s.InFlight++
		}
	}
	if len(activity) > 0 {
		s.FirstLedger = activity[0].Ledger
		s.LastLedger = activity[len(activity)-1].Ledger
	}
	return s
}

func countActions(activity []ActivityRow) []ActionCountRow {
	type key struct{ contract, action string }
	counts := make(map[key]int)
	for _, a := range activity {
		counts[key{a.Contract, a.Action}]++
	}

	rows := make([]ActionCountRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, ActionCountRow{Contract: k.contract, Action: k.action, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Contract != rows[j].Contract {
			return rows[i].Contract < rows[j].Contract
		}
		return rows[i].Action < rows[j].Action
	})
	return rows
}

func msTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func joinTopics(topics []string) string {
	return strings.Join(topics, " ")
}
