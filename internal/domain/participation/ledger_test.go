package participation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ycseeasy/explore-with-me/internal/domain/events"
)

type stubEventStore struct {
	event   *events.Event
	written []int
}

func (s *stubEventStore) GetByID(context.Context, string) (*events.Event, error) {
	return s.event.Clone(), nil
}

func (s *stubEventStore) GetForUpdate(context.Context, string) (*events.Event, error) {
	return s.event.Clone(), nil
}

func (s *stubEventStore) SetConfirmedRequests(_ context.Context, _ string, count int) error {
	s.written = append(s.written, count)
	return nil
}

func (s *stubEventStore) ListIDs(context.Context, string, int) ([]string, error) {
	return nil, nil
}

type stubStore struct {
	events *stubEventStore
}

func (s *stubStore) BeginTx(context.Context) (Store, TxCommitter, error) { return s, nil, nil }
func (s *stubStore) Events() EventStore                                  { return s.events }
func (s *stubStore) Requests() Repository                                { return nil }

func openTestLedger(t *testing.T, limit, confirmed int) (*Ledger, *stubEventStore) {
	t.Helper()
	es := &stubEventStore{event: &events.Event{ID: "e1", ParticipantLimit: limit, ConfirmedRequests: confirmed}}
	ledger, err := OpenLedger(context.Background(), &stubStore{events: es}, "e1")
	require.NoError(t, err)
	return ledger, es
}

func TestReserveStopsAtLimit(t *testing.T) {
	ledger, _ := openTestLedger(t, 2, 0)

	require.True(t, ledger.Reserve())
	require.True(t, ledger.Reserve())
	require.False(t, ledger.Reserve())
	require.Equal(t, 2, ledger.Event().ConfirmedRequests)
	require.True(t, ledger.Full())
}

func TestReserveUnlimited(t *testing.T) {
	ledger, _ := openTestLedger(t, 0, 1000)

	require.True(t, ledger.Reserve())
	require.False(t, ledger.Full())
	require.Equal(t, 1001, ledger.Event().ConfirmedRequests)
}

func TestReleaseFloorsAtZero(t *testing.T) {
	ledger, _ := openTestLedger(t, 3, 1)

	ledger.Release()
	ledger.Release()

	require.Equal(t, 0, ledger.Event().ConfirmedRequests)
	require.Equal(t, -1, ledger.Delta())
}

func TestCommitWritesOnlyChanges(t *testing.T) {
	ledger, es := openTestLedger(t, 3, 1)

	require.NoError(t, ledger.Commit(context.Background()))
	require.Empty(t, es.written)

	require.True(t, ledger.Reserve())
	require.NoError(t, ledger.Commit(context.Background()))
	require.Equal(t, []int{2}, es.written)
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	require.Equal(t, []string{"b", "a", "c"}, dedupe([]string{"b", "a", "b", "c", "a"}))
	require.Empty(t, dedupe(nil))
}

func TestCorrectOverwritesCounter(t *testing.T) {
	ledger, es := openTestLedger(t, 5, 4)

	require.Equal(t, 2, ledger.Correct(2))
	require.Equal(t, 2, ledger.Event().ConfirmedRequests)
	require.NoError(t, ledger.Commit(context.Background()))
	require.Equal(t, []int{2}, es.written)

	require.Equal(t, 0, ledger.Correct(2))
	require.Equal(t, 2, ledger.Correct(-3))
	require.Equal(t, 0, ledger.Event().ConfirmedRequests)
}
