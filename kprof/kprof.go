// Package kprof implements component N: profile snapshots of the
// scheduler and kernel heap, built on github.com/google/pprof/profile so
// the same snapshot can be inspected with standard pprof tooling instead
// of a bespoke metrics format. Grounded on spec.md §4.N directly — the
// teacher has no profiling package of its own to adapt, so this is new
// code wired to an enrichment-pack dependency rather than a teacher port.
package kprof

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"nanos/kheap"
	"nanos/sched"
)

// labelFor builds a new function/location pair named name on every call,
// appending to p's tables. pprof profiles identify samples by location,
// not by name directly, so every label gets its own synthesized
// Function/Location with a sequential ID (1, 2, 3, ...) and no address
// — there is no real program counter to sample
// against here, only named buckets (per-task, heap-total, heap-used,
// heap-free).
func labelFor(p *profile.Profile, name string) *profile.Location {
	id := uint64(len(p.Function) + 1)
	fn := &profile.Function{ID: id, Name: name}
	p.Function = append(p.Function, fn)
	loc := &profile.Location{
		ID: id,
		Line: []profile.Line{{Function: fn}},
	}
	p.Location = append(p.Location, loc)
	return loc
}

// Snapshot builds a *profile.Profile with one sample per live task
// (values: ticks remaining in its current slice, priority, accrued CPU
// milliseconds) and one sample each for heap total/used/free bytes.
func Snapshot(s *sched.Scheduler, h *kheap.Heap) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "slice_ticks", Unit: "count"},
			{Type: "priority", Unit: "count"},
			{Type: "cpu", Unit: "milliseconds"},
		},
		PeriodType: &profile.ValueType{Type: "snapshot", Unit: "count"},
		Period:     1,
	}

	for _, t := range s.Tasks() {
		loc := labelFor(p, taskLabel(t))
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(t.TimeSlice), int64(t.Priority), t.Acct.TotalMillis()},
		})
	}

	total, used, free := h.Stats()
	heapSample := func(name string, v int) {
		loc := labelFor(p, name)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(v), 0, 0},
		})
	}
	heapSample("heap_total", total)
	heapSample("heap_used", used)
	heapSample("heap_free", free)

	return p
}

func taskLabel(t sched.Task) string {
	return fmt.Sprintf("task_pid%d_%s", t.Pid, t.State)
}

// WriteProfile serializes snap with the profile package's own gzip-protobuf
// encoding, so it can be opened directly with `go tool pprof`.
func WriteProfile(w io.Writer, snap *profile.Profile) error {
	return snap.Write(w)
}
