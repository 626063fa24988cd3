package components

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/sarchlab/cosim/coupling"
	"github.com/sarchlab/cosim/datarecording"
	"github.com/sarchlab/cosim/workspace"
)

// A Sample is one value seen by a Scope.
type Sample struct {
	Tick  uint64
	Value float64
}

// A Scope keeps the recent history of its input and can write every sample
// to a DataRecorder.
type Scope struct {
	*workspace.ComponentBase

	capacity int
	history  []Sample
	input    float64
	ticks    uint64

	recorder datarecording.DataRecorder
	table    string

	in *coupling.FuncConsumer[float64]
}

// NewScope creates a scope keeping the last capacity samples. A capacity of
// zero or less keeps 1000.
func NewScope(name string, capacity int) *Scope {
	if capacity <= 0 {
		capacity = 1000
	}

	s := &Scope{
		ComponentBase: workspace.NewComponentBase(name),
		capacity:      capacity,
	}

	s.in = coupling.NewConsumer(s, "scope", "in",
		func(v float64) { s.input = v })
	s.AddConsumer(s.in)

	return s
}

// Input returns the consumer of the scope.
func (s *Scope) Input() *coupling.FuncConsumer[float64] {
	return s.in
}

// RecordTo makes the scope write every sample into the recorder. The table
// is created on the first sample, named after the scope at that time.
func (s *Scope) RecordTo(recorder datarecording.DataRecorder) {
	s.Lock()
	defer s.Unlock()

	s.recorder = recorder
	s.table = ""
}

// TableName returns the recorder table of the scope, or an empty string
// before the first recorded sample.
func (s *Scope) TableName() string {
	s.Lock()
	defer s.Unlock()

	return s.table
}

// DefaultFormat is the format of the scope's archive entry.
func (s *Scope) DefaultFormat() string {
	return "csv"
}

// Update samples the input.
func (s *Scope) Update() error {
	sample := Sample{Tick: s.ticks, Value: s.input}
	s.ticks++

	s.history = append(s.history, sample)
	if len(s.history) > s.capacity {
		s.history = s.history[len(s.history)-s.capacity:]
	}

	if s.recorder != nil {
		if s.table == "" {
			s.table = scopeTableName(s.Name())
			s.recorder.CreateTable(s.table, Sample{})
		}

		s.recorder.InsertData(s.table, sample)
	}

	return nil
}

// Stopped flushes the recorder.
func (s *Scope) Stopped() {
	s.Lock()
	recorder := s.recorder
	s.Unlock()

	if recorder != nil {
		recorder.Flush()
	}
}

// History returns the samples kept, oldest first.
func (s *Scope) History() []Sample {
	s.Lock()
	defer s.Unlock()

	h := make([]Sample, len(s.history))
	copy(h, s.history)

	return h
}

// Clear drops the history.
func (s *Scope) Clear() {
	s.Lock()
	defer s.Unlock()

	s.history = nil
}

// WriteCSV writes the history with a header row.
func (s *Scope) WriteCSV(w io.Writer) error {
	out := csv.NewWriter(w)

	if err := out.Write([]string{"tick", "value"}); err != nil {
		return err
	}

	for _, sample := range s.History() {
		err := out.Write([]string{
			strconv.FormatUint(sample.Tick, 10),
			strconv.FormatFloat(sample.Value, 'g', -1, 64),
		})
		if err != nil {
			return err
		}
	}

	out.Flush()

	return out.Error()
}

// WriteData stores the history as CSV.
func (s *Scope) WriteData(w io.Writer) error {
	return s.WriteCSV(w)
}

func scopeTableName(name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}

		return '_'
	}, name)

	return "scope_" + clean
}
