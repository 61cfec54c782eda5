package telemetry

import (
	"fmt"
	"strings"
	"sync"
)

type RecordKind int

const (
	RecordBroken RecordKind = iota
	RecordWarning
	RecordDebug
	RecordCount
)

type Record struct {
	Kind   RecordKind
	ID     string
	Params []any
	Count  int64
}

// Recorder is an API that keeps every report in memory so tests can assert
// that a failure was surfaced rather than swallowed.
type Recorder struct {
	mutex   sync.Mutex
	Records []Record
	// Inner, if set, also receives every report.
	Inner API
}

func (r *Recorder) add(rec Record) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Records = append(r.Records, rec)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Record{Kind: RecordBroken, ID: id, Params: params})
	if r.Inner != nil {
		r.Inner.ReportBroken(id, params...)
	}
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Record{Kind: RecordWarning, ID: id, Params: params})
	if r.Inner != nil {
		r.Inner.ReportWarning(id, params...)
	}
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Record{Kind: RecordDebug, ID: msg, Params: params})
	if r.Inner != nil {
		r.Inner.ReportDebug(msg, params...)
	}
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Record{Kind: RecordCount, ID: id, Count: count})
	if r.Inner != nil {
		r.Inner.ReportCount(id, count)
	}
}

// Find returns all records of a kind whose id ends with suffix.
func (r *Recorder) Find(kind RecordKind, suffix string) []Record {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Record
	for _, rec := range r.Records {
		if rec.Kind == kind && strings.HasSuffix(rec.ID, suffix) {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Recorder) String() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out strings.Builder
	for _, rec := range r.Records {
		fmt.Fprintf(&out, "%d %s %v\n", rec.Kind, rec.ID, rec.Params)
	}
	return out.String()
}
