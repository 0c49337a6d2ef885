package heartbeat

import (
	"sync/atomic"
	"testing"
	"time"

	"transmute/internal/config"
	"transmute/internal/logging"
)

func newTestSupervisor() *Supervisor {
	return New(logging.NewNop(), config.Heartbeat{Interval: 1, WarnAfter: 5, KillCeiling: 30})
}

func TestBeatKeepsOperationAlive(t *testing.T) {
	s := newTestSupervisor()
	var killed atomic.Bool
	ticket := s.Register("encode", func() { killed.Store(true) })
	defer ticket.Close()

	start := time.Now()
	// Silence would cross the warn window, but a beat resets it.
	s.recordBeat(Event{Token: ticket.token, At: start.Add(29 * time.Second)})
	s.inspect(start.Add(30 * time.Second))

	if killed.Load() {
		t.Fatal("operation killed despite fresh beat")
	}
	if ticket.Killed() {
		t.Fatal("ticket reports killed")
	}
}

func TestSilentOperationKilledAtCeiling(t *testing.T) {
	s := newTestSupervisor()
	var killed atomic.Bool
	ticket := s.Register("encode", func() { killed.Store(true) })
	defer ticket.Close()

	start := time.Now()
	s.inspect(start.Add(10 * time.Second)) // warn territory
	if killed.Load() {
		t.Fatal("killed during warn window")
	}
	s.inspect(start.Add(31 * time.Second))
	if !killed.Load() {
		t.Fatal("expected kill callback past ceiling")
	}
	if !ticket.Killed() {
		t.Fatal("ticket should report killed")
	}
}

func TestKillFiresOnlyOnce(t *testing.T) {
	s := newTestSupervisor()
	var kills atomic.Int32
	ticket := s.Register("encode", func() { kills.Add(1) })
	defer ticket.Close()

	start := time.Now()
	s.inspect(start.Add(31 * time.Second))
	s.inspect(start.Add(62 * time.Second))
	if got := kills.Load(); got != 1 {
		t.Fatalf("kill callback fired %d times", got)
	}
}

func TestWarnResetAfterBeat(t *testing.T) {
	s := newTestSupervisor()
	ticket := s.Register("metric", nil)
	defer ticket.Close()

	start := time.Now()
	s.inspect(start.Add(6 * time.Second))
	s.mu.Lock()
	warned := s.ops[ticket.token].warned
	s.mu.Unlock()
	if !warned {
		t.Fatal("expected warn flag after silence")
	}

	s.recordBeat(Event{Token: ticket.token, At: start.Add(7 * time.Second)})
	s.mu.Lock()
	warned = s.ops[ticket.token].warned
	s.mu.Unlock()
	if warned {
		t.Fatal("beat should clear warn flag")
	}
}

func TestCloseRemovesFromRegistry(t *testing.T) {
	s := newTestSupervisor()
	ticket := s.Register("encode", nil)
	ticket.Close()
	if len(s.Snapshot()) != 0 {
		t.Fatal("expected empty registry after close")
	}
}

func TestBeatNeverBlocks(t *testing.T) {
	s := newTestSupervisor()
	ticket := s.Register("encode", nil)
	defer ticket.Close()
	// Fill the channel beyond capacity; extra beats must be dropped, not block.
	for i := 0; i < 1000; i++ {
		ticket.Beat("frame")
	}
}
