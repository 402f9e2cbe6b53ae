package system

import (
	"context"
	"errors"
	"testing"
)

// recordingService notes start/stop calls in a shared journal.
type recordingService struct {
	name     string
	startErr error
	journal  *[]string
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.journal = append(*s.journal, "start:"+s.name)
	return nil
}

func (s *recordingService) Stop(context.Context) error {
	*s.journal = append(*s.journal, "stop:"+s.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var journal []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&recordingService{name: name, journal: &journal}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(journal) != len(want) {
		t.Fatalf("journal = %v, want %v", journal, want)
	}
	for i := range want {
		if journal[i] != want[i] {
			t.Fatalf("journal[%d] = %q, want %q", i, journal[i], want[i])
		}
	}
}

func TestManagerStartFailureUnwinds(t *testing.T) {
	var journal []string
	m := NewManager()
	boom := errors.New("boom")

	_ = m.Register(&recordingService{name: "a", journal: &journal})
	_ = m.Register(&recordingService{name: "b", startErr: boom, journal: &journal})
	_ = m.Register(&recordingService{name: "c", journal: &journal})

	if err := m.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want the failing service error", err)
	}

	want := []string{"start:a", "stop:a"}
	if len(journal) != len(want) || journal[0] != want[0] || journal[1] != want[1] {
		t.Fatalf("journal = %v, want %v (started services unwound, later ones untouched)", journal, want)
	}
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	var journal []string
	m := NewManager()
	if err := m.Register(&recordingService{name: "a", journal: &journal}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&recordingService{name: "a", journal: &journal}); err == nil {
		t.Fatalf("duplicate registration accepted")
	}
}
