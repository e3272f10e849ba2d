package engine

import (
	"errors"

	"github.com/librarydesk/lending-engine/lending"
)

// commitPhase runs the writes of a lending transaction in order and remembers how far it got.
type commitPhase struct {
	steps     []lending.CommitStep
	completed []lending.CommitStep
	failed    lending.CommitStep
	cause     error
}

type commitWrite struct {
	step  lending.CommitStep
	write func() error
}

// run executes the writes and stops at the first failure, which it returns unchanged.
func (c *commitPhase) run(writes ...commitWrite) error {
	for _, w := range writes {
		c.steps = append(c.steps, w.step)
	}

	for _, w := range writes {
		if err := w.write(); err != nil {
			c.failed = w.step
			c.cause = err

			return err
		}

		c.completed = append(c.completed, w.step)
	}

	return nil
}

// commitOutcome turns the result of InTransaction into the error the caller sees.
// Failures before the commit phase started are returned unchanged.
func commitOutcome(phase *commitPhase, operation string, record lending.BorrowRecord, err error) error {
	if err == nil || phase == nil || len(phase.steps) == 0 {
		return err
	}

	commitErr := &lending.CommitError{
		Operation: operation,
		RecordID:  record.RecordID,
		MemberID:  record.MemberID,
		ISBN:      record.ISBN,
		Completed: append([]lending.CommitStep(nil), phase.completed...),
		Err:       err,
	}

	commitErr.Failed = lending.StepCommit
	if phase.failed != "" {
		commitErr.Failed = phase.failed
	}

	// Backends discard the unit of work on any failure unless they report ErrCommitFailed,
	// which means the outcome of the commit or of the rollback is unknown.
	commitErr.RolledBack = !errors.Is(err, lending.ErrCommitFailed)

	return commitErr
}
