package printer

import "testing"

func TestJobTracker_NewestFirst(t *testing.T) {
	tr := NewJobTracker(10)
	a := newJob("a")
	b := newJob("b")
	tr.add(a)
	tr.add(b)

	all := tr.All()
	if len(all) != 2 || all[0].ID != b.ID {
		t.Fatalf("Expected newest first, got %+v", all)
	}
	if tr.Get(a.ID).Remote != "a" {
		t.Error("Get returned the wrong job")
	}
	if tr.Get("missing") != nil {
		t.Error("Expected nil for unknown job")
	}
}

func TestJobTracker_GetReturnsCopy(t *testing.T) {
	tr := NewJobTracker(10)
	j := newJob("a")
	tr.add(j)

	c := tr.Get(j.ID)
	c.Status = JobFailed
	c.Labels = append(c.Labels, "x")

	if tr.Get(j.ID).Status != JobAccepted || len(tr.Get(j.ID).Labels) != 0 {
		t.Error("Mutating a copy changed the tracker")
	}
}

func TestJobTracker_EvictsFinishedOnly(t *testing.T) {
	tr := NewJobTracker(2)
	running := newJob("running")
	done := newJob("done")
	done.Status = JobCompleted
	tr.add(running)
	tr.add(done)
	tr.add(newJob("new"))

	if len(tr.All()) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(tr.All()))
	}
	if tr.Get(running.ID) == nil {
		t.Error("In-flight job was evicted")
	}
	if tr.Get(done.ID) != nil {
		t.Error("Finished job should have been evicted")
	}
}

func TestJobTracker_ClearFinished(t *testing.T) {
	tr := NewJobTracker(10)
	for _, status := range []JobStatus{JobCompleted, JobFailed, JobRendering} {
		j := newJob("x")
		j.Status = status
		tr.add(j)
	}

	if n := tr.ClearFinished(); n != 2 {
		t.Errorf("Expected 2 cleared, got %d", n)
	}
	counts := tr.Counts()
	if counts[JobRendering] != 1 || len(tr.All()) != 1 {
		t.Errorf("Unexpected remaining jobs: %v", counts)
	}
}
