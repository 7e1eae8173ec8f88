package switcher

import (
	"testing"
)

func pgm() Tally { return Tally{Program: true, Brightness: 3} }
func pvw() Tally { return Tally{Preview: true, Brightness: 3} }
func off() Tally { return Tally{} }

func TestFirstProgramReportInitializesWithoutChange(t *testing.T) {
	s := NewState()
	if bus, changed := s.Update(1, pgm(), "ME1PGM", "CAM 1"); changed {
		t.Fatalf("initial population must not signal change, got bus %q", bus)
	}
	src, ok := s.ProgramSource("ME1PGM")
	if !ok || src.Index != 1 {
		t.Fatalf("program source after init: %+v ok=%v", src, ok)
	}
}

func TestProgramReassignmentSignalsChange(t *testing.T) {
	s := NewState()
	s.Update(1, pgm(), "ME1PGM", "CAM 1")
	bus, changed := s.Update(2, pgm(), "ME1PGM", "CAM 2")
	if !changed || bus != "ME1PGM" {
		t.Fatalf("reassignment must signal change: bus=%q changed=%v", bus, changed)
	}
	src, _ := s.ProgramSource("ME1PGM")
	if src.Index != 2 || src.SourceLabel != "CAM 2" {
		t.Fatalf("program source after cut: %+v", src)
	}
}

func TestSameSourceRepeatIsNotAChange(t *testing.T) {
	s := NewState()
	s.Update(1, pgm(), "ME1PGM", "CAM 1")
	if _, changed := s.Update(1, pgm(), "ME1PGM", "CAM 1"); changed {
		t.Fatalf("repeated report for current program source must not signal change")
	}
}

func TestPreviewNeverSignalsChange(t *testing.T) {
	s := NewState()
	s.Update(1, pvw(), "ME1PGM", "CAM 1")
	if _, changed := s.Update(2, pvw(), "ME1PGM", "CAM 2"); changed {
		t.Fatalf("preview updates are never reportable")
	}
	src, ok := s.PreviewSource("ME1PGM")
	if !ok || src.Index != 2 {
		t.Fatalf("preview source: %+v ok=%v", src, ok)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := NewState()
	s.Update(1, pgm(), "ME1PGM", "CAM 1")
	s.Update(2, pvw(), "ME1PGM", "CAM 2")
	s.Reset()
	if _, ok := s.ProgramSource("ME1PGM"); ok {
		t.Fatalf("program map must be empty after reset")
	}
	if _, ok := s.Source(1); ok {
		t.Fatalf("source table must be empty after reset")
	}
	// First report after reset is a fresh initial population.
	if _, changed := s.Update(3, pgm(), "ME1PGM", "CAM 3"); changed {
		t.Fatalf("first report after reset must not signal change")
	}
}

func TestBusLabelsSorted(t *testing.T) {
	s := NewState()
	s.Update(1, pgm(), "ME2PGM", "CAM 1")
	s.Update(2, pgm(), "AUX1", "CAM 2")
	s.Update(3, pgm(), "ME1PGM", "CAM 3")
	s.Update(4, off(), "IGNORED", "CAM 4")
	got := s.BusLabels()
	want := []string{"AUX1", "ME1PGM", "ME2PGM"}
	if len(got) != len(want) {
		t.Fatalf("bus labels: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bus labels: got %v want %v", got, want)
		}
	}
}

func TestUpdateAlwaysOverwritesSourceRow(t *testing.T) {
	s := NewState()
	s.Update(1, pgm(), "ME1PGM", "CAM 1")
	s.Update(1, off(), "ME1PGM", "WIDE")
	src, ok := s.Source(1)
	if !ok || src.SourceLabel != "WIDE" || src.Tally.Program {
		t.Fatalf("source row must reflect latest report: %+v", src)
	}
}
