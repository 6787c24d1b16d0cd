// Package stats implements kernel-wide diagnostic counters, grounded on
// the teacher's stats/stats.go Counter_t/Cycles_t/Stats2String idiom.
// Dropped: the teacher's compile-time Stats/Timing boolean gates (which
// exist because biscuit pays a real per-increment cost on a boot this
// kernel never performs at that scale) and Rdtsc (patched into the
// teacher's own runtime; unavailable to an unmodified go build). Cycles_t
// here accumulates scheduler ticks handed to it by a caller rather than a
// cycle counter it reads itself — any component that wants wall-clock-ish
// timing already has a tick source (sched.Scheduler.Now) to pass in.
package stats

import (
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"
)

// Counter_t is a monotonically increasing event counter, safe for
// concurrent use.
type Counter_t struct {
	v int64
}

// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	atomic.AddInt64(&c.v, 1)
}

// Add increments the counter by n.
func (c *Counter_t) Add(n int64) {
	atomic.AddInt64(&c.v, n)
}

// Get returns the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64(&c.v)
}

// Cycles_t accumulates elapsed ticks across some repeated operation (e.g.
// time spent blocked in sched.Receive, or inside a page fault handler).
type Cycles_t struct {
	v int64
}

// Add folds n more ticks into the running total.
func (c *Cycles_t) Add(n uint64) {
	atomic.AddInt64(&c.v, int64(n))
}

// Get returns the accumulated tick total.
func (c *Cycles_t) Get() int64 {
	return atomic.LoadInt64(&c.v)
}

// Stats2String renders every Counter_t and Cycles_t field of st (a struct
// or pointer to one) as "Name: value" lines, sorted by field name so the
// output is stable across calls. Grounded directly on the teacher's
// Stats2String, which walks the same two field kinds via reflect; the
// sort is new, since this kernel's shell (meminfo) prints these
// snapshots to a terminal where biscuit's own caller only ever logged
// them once at shutdown.
func Stats2String(st interface{}) string {
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return ""
	}
	t := v.Type()
	type line struct {
		name string
		val  int64
	}
	var lines []line
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		switch c := f.Addr().Interface().(type) {
		case *Counter_t:
			lines = append(lines, line{t.Field(i).Name, c.Get()})
		case *Cycles_t:
			lines = append(lines, line{t.Field(i).Name, c.Get()})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].name < lines[j].name })
	s := ""
	for _, l := range lines {
		s += fmt.Sprintf("%s: %d\n", l.name, l.val)
	}
	return s
}
