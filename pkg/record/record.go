// Package record persists a finished session: corrected CSV table, optional
// raw table and a plot of the corrected series.
package record

import (
	"errors"
	"fmt"

	"github.com/itohio/godaq/pkg/sample"
)

// Session is the frozen result of one acquisition run.
type Session struct {
	Label     string
	Channels  int              // Number of channels per row
	Raw       []sample.Reading // Uncorrected voltage log
	Corrected []sample.Reading // Baseline-corrected voltage log
}

// Sink stores a finished session.
type Sink interface {
	Write(s Session) error
}

// Sinks writes the session to every sink and joins their errors.
// A failing sink does not prevent the remaining sinks from running.
type Sinks []Sink

func (ss Sinks) Write(s Session) error {
	var errs []error
	for _, sink := range ss {
		if err := sink.Write(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IOError reports an output file that could not be created or written.
type IOError struct {
	Op   string // "create", "write" or "close"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
