package pipeline

import "fmt"

// RetrievalError marks a single identifier whose report could not be fetched.
// It never stops a run.
type RetrievalError struct {
	ID  string
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieve %s: %v", e.ID, e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

// PersistenceError is a failed write to the cache, checkpoint or output.
// It stops the run.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// InputError is a problem with the run's inputs detected before any work.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string { return fmt.Sprintf("input %s: %v", e.Source, e.Err) }
func (e *InputError) Unwrap() error { return e.Err }
