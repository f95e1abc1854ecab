package participation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
)

// ReleaseRequester cancels every active request of requesterID inside tx.
// Each affected event is locked through its ledger, in ascending id order,
// and CONFIRMED requests give their seat back before the ledger commits.
// It returns the requests it canceled, with their status before canceling.
//
// Removing a user runs this in the same unit of work as the delete, so no
// seat outlives the request that held it.
func ReleaseRequester(ctx context.Context, tx Store, requesterID string) ([]Request, error) {
	listed, err := tx.Requests().ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	eventIDs := make([]string, 0, len(listed))
	seen := make(map[string]struct{}, len(listed))
	for _, req := range listed {
		if req.Status == StatusCanceled {
			continue
		}
		if _, ok := seen[req.EventID]; ok {
			continue
		}
		seen[req.EventID] = struct{}{}
		eventIDs = append(eventIDs, req.EventID)
	}
	sort.Strings(eventIDs)

	canceled := make([]Request, 0, len(eventIDs))
	for _, eventID := range eventIDs {
		ledger, err := OpenLedger(ctx, tx, eventID)
		if errors.Is(err, events.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// Reload under the event lock: an admission decision may have landed in between.
		current, err := tx.Requests().FindActive(ctx, requesterID, eventID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := tx.Requests().UpdateStatus(ctx, current.ID, StatusCanceled); err != nil {
			return nil, fmt.Errorf("cancel request %s: %w", current.ID, err)
		}
		if current.Status == StatusConfirmed {
			ledger.Release()
		}
		if err := ledger.Commit(ctx); err != nil {
			return nil, err
		}
		canceled = append(canceled, *current)
	}
	return canceled, nil
}
