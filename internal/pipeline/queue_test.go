package pipeline

import "testing"

func TestJobQueueDrainsInOrder(t *testing.T) {
	q := NewJobQueue([]Job{{LayerIdx: 0, Row: 0}, {LayerIdx: 0, Row: 1}, {LayerIdx: 1, Row: 0}})
	want := []Job{{LayerIdx: 0, Row: 0}, {LayerIdx: 0, Row: 1}, {LayerIdx: 1, Row: 0}}
	for i, w := range want {
		got, ok := q.GetNextJob()
		if !ok {
			t.Fatalf("GetNextJob #%d: queue empty early", i)
		}
		if got != w {
			t.Errorf("GetNextJob #%d = %+v, want %+v", i, got, w)
		}
	}
	if _, ok := q.GetNextJob(); ok {
		t.Error("expected queue to be empty after draining all jobs")
	}
}

func TestJobQueueRemaining(t *testing.T) {
	q := NewJobQueue([]Job{{}, {}, {}})
	if q.Remaining() != 3 {
		t.Fatalf("Remaining() = %d, want 3", q.Remaining())
	}
	q.GetNextJob()
	if q.Remaining() != 2 {
		t.Fatalf("Remaining() after one pop = %d, want 2", q.Remaining())
	}
}
