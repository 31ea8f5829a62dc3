package minusx

import (
	"errors"
	"fmt"
	"strings"
)

// UserInputError signals that one or more tasks need the client to run
// their tool calls before the conversation can continue. It is not a
// failure: the orchestrator lets it bubble up, the HTTP layer answers with
// the affected tasks as pending tool calls, and a later request resumes
// from the log once the client appends results.
type UserInputError struct {
	TaskIDs []string
}

func (e *UserInputError) Error() string {
	return fmt.Sprintf("awaiting user input for tasks: %s", strings.Join(e.TaskIDs, ", "))
}

// SuspendTask returns a UserInputError for a single task. Tools that
// execute on the client call this from Run instead of producing a result.
func SuspendTask(uniqueID string) error {
	return &UserInputError{TaskIDs: []string{uniqueID}}
}

// IsUserInput reports whether err is (or wraps) a UserInputError.
func IsUserInput(err error) bool {
	var uie *UserInputError
	return errors.As(err, &uie)
}

// gatherUserInput folds the errors of a sibling batch. Non-suspension
// errors win: the first one encountered is returned as-is. Otherwise all
// suspended task ids are merged into a single UserInputError, preserving
// batch order. Returns nil when every error is nil.
func gatherUserInput(errs []error) error {
	var ids []string
	for _, err := range errs {
		if err == nil {
			continue
		}
		var uie *UserInputError
		if errors.As(err, &uie) {
			ids = append(ids, uie.TaskIDs...)
			continue
		}
		return err
	}
	if len(ids) > 0 {
		return &UserInputError{TaskIDs: ids}
	}
	return nil
}
