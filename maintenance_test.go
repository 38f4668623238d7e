// maintenance_test.go - MaintenanceTask drain/refill batching and wraparound

package looper

import "testing"

type mockTrackStore struct {
	data        map[int][]Block
	flushCalls  int
	removeCalls int
}

func newMockTrackStore() *mockTrackStore {
	return &mockTrackStore{data: make(map[int][]Block)}
}

func (s *mockTrackStore) Flush(trackID int, blocks []Block) error {
	s.flushCalls++
	s.data[trackID] = append(s.data[trackID], blocks...)
	return nil
}

func (s *mockTrackStore) Fetch(trackID int, blockIndex, count int) ([]Block, error) {
	all := s.data[trackID]
	if blockIndex >= len(all) {
		return nil, nil
	}
	end := blockIndex + count
	if end > len(all) {
		end = len(all)
	}
	return all[blockIndex:end], nil
}

func (s *mockTrackStore) Remove(trackID int) error {
	s.removeCalls++
	delete(s.data, trackID)
	return nil
}

func (s *mockTrackStore) RemoveAll() error {
	s.data = make(map[int][]Block)
	return nil
}

func TestMaintenanceDrainFlushesInputRing(t *testing.T) {
	store := newMockTrackStore()
	task := NewMaintenanceTask(store)
	rings := task.Register(0)

	b := make(Block, BlockSamples)
	for i := 0; i < 5; i++ {
		if !rings.Input.Push(b) {
			t.Fatalf("push %d into a fresh input ring should succeed", i)
		}
	}

	task.Run()

	if store.flushCalls != 1 {
		t.Fatalf("flush calls=%d, want 1 (one batch)", store.flushCalls)
	}
	if len(store.data[0]) != 5 {
		t.Fatalf("blocks flushed=%d, want 5", len(store.data[0]))
	}
	if rings.Input.Available() != 0 {
		t.Fatalf("input ring should be drained, available=%d", rings.Input.Available())
	}
}

func TestMaintenanceRefillPullsFromStore(t *testing.T) {
	store := newMockTrackStore()
	for i := 0; i < 10; i++ {
		store.data[0] = append(store.data[0], make(Block, BlockSamples))
	}
	task := NewMaintenanceTask(store)
	rings := task.Register(0)

	task.Run()

	if rings.Output.Available() != 10 {
		t.Fatalf("output ring available=%d, want 10", rings.Output.Available())
	}
}

func TestMaintenanceRefillReportsUnderrunWhenNotClosed(t *testing.T) {
	store := newMockTrackStore()
	store.data[0] = append(store.data[0], make(Block, BlockSamples))

	var events []string
	task := NewMaintenanceTask(store)
	task.SetDiagnostics(func(event string, trackIndex int) { events = append(events, event) })
	task.Register(0)

	task.Run()

	found := false
	for _, e := range events {
		if e == EventRingUnderrun {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an underrun report once the store runs dry, got %v", events)
	}
}

func TestMaintenanceRefillWrapsOnClosedTrack(t *testing.T) {
	store := newMockTrackStore()
	for i := 0; i < 3; i++ {
		store.data[0] = append(store.data[0], make(Block, BlockSamples))
	}
	task := NewMaintenanceTask(store)
	rings := task.Register(0)
	rings.Close()

	task.Run()

	if rings.Output.Available() != 6 {
		t.Fatalf("output ring available after one wrapped pass=%d, want 6 (3 + 3 looped)", rings.Output.Available())
	}
}

func TestMaintenanceUnregisterRemovesStorageAndStopsServicing(t *testing.T) {
	store := newMockTrackStore()
	task := NewMaintenanceTask(store)
	rings := task.Register(2)
	b := make(Block, BlockSamples)
	rings.Input.Push(b)

	if err := task.Unregister(2); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if store.removeCalls != 1 {
		t.Fatalf("remove calls=%d, want 1", store.removeCalls)
	}

	flushesBefore := store.flushCalls
	task.Run()
	if store.flushCalls != flushesBefore {
		t.Fatalf("Run should not service an unregistered track")
	}
}
