package ingestion

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban"
)

// Namer resolves a contract id to a short contract name.
type Namer interface {
	Name(contractID string) string
}

// ToActivity converts an RPC contract event. Topics that decode to strings
// are kept as is; other topic values and the body are kept as JSON text.
// Undecodable values are kept in their encoded form.
func ToActivity(codec soroban.Codec, names Namer, ev soroban.Event) *domain.ActivityEvent {
	out := &domain.ActivityEvent{
		EventID:    ev.ID,
		ContractID: ev.ContractID,
		Contract:   names.Name(ev.ContractID),
		Topics:     make([]string, 0, len(ev.Topic)),
		Value:      decodeJSON(codec, ev.Value),
		TxHash:     ev.TxHash,
		Ledger:     ev.Ledger,
	}
	for _, t := range ev.Topic {
		out.Topics = append(out.Topics, decodeTopic(codec, t))
	}
	if ts, err := time.Parse(time.RFC3339, ev.LedgerClosedAt); err == nil {
		out.LedgerClosedAt = ts.UnixMilli()
	}
	return out
}

func decodeTopic(codec soroban.Codec, encoded string) string {
	var s string
	if err := codec.DecodeValue(encoded, &s); err == nil {
		return s
	}
	return decodeJSON(codec, encoded)
}

func decodeJSON(codec soroban.Codec, encoded string) string {
	if encoded == "" {
		return ""
	}
	var raw json.RawMessage
	if err := codec.DecodeValue(encoded, &raw); err != nil {
		return encoded
	}
	return string(raw)
}

// SortActivity orders events by (ledger, event id).
func SortActivity(events []*domain.ActivityEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareActivity(events[i], events[j]) < 0
	})
}

// ValidateActivityOrdering checks that events are strictly ordered by
// (ledger, event id).
func ValidateActivityOrdering(events []*domain.ActivityEvent) error {
	for i := 1; i < len(events); i++ {
		if compareActivity(events[i-1], events[i]) >= 0 {
			return fmt.Errorf("activity events not ordered at index %d: %s@%d after %s@%d",
				i, events[i].EventID, events[i].Ledger, events[i-1].EventID, events[i-1].Ledger)
		}
	}
	return nil
}

func compareActivity(a, b *domain.ActivityEvent) int {
	switch {
	case a.Ledger < b.Ledger:
		return -1
	case a.Ledger > b.Ledger:
		return 1
	case a.EventID < b.EventID:
		return -1
	case a.EventID > b.EventID:
		return 1
	}
	return 0
}
