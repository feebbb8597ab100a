package pipeline

import "fmt"

// ErrorKind classifies a stage error so callers can branch on the failure
// category instead of string-matching messages.
type ErrorKind string

const (
	// ErrorKindInput: the submitted batch is invalid; resubmitting a
	// corrected batch can succeed.
	ErrorKindInput ErrorKind = "input"

	// ErrorKindConfig: a dependency is misconfigured (e.g. no storage
	// bucket); retrying without an operator fix cannot succeed.
	ErrorKindConfig ErrorKind = "config"

	// ErrorKindItem: a single image failed mid-stage; the stage may still
	// succeed if enough items survive.
	ErrorKindItem ErrorKind = "item"

	// ErrorKindExternal: a storage/training/datastore call failed.
	ErrorKindExternal ErrorKind = "external"

	// ErrorKindVerification: a post-write check contradicted the reported
	// outcome of the write.
	ErrorKindVerification ErrorKind = "verification"
)

type StageError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e StageError) Unwrap() error {
	return e.Cause
}

func inputErrorf(format string, args ...any) StageError {
	return StageError{Kind: ErrorKindInput, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) StageError {
	return StageError{Kind: ErrorKindConfig, Message: fmt.Sprintf(format, args...)}
}

func itemError(index int, message string, cause error) StageError {
	return StageError{Kind: ErrorKindItem, Message: fmt.Sprintf("image %d: %s", index+1, message), Cause: cause}
}

func externalError(message string, cause error) StageError {
	return StageError{Kind: ErrorKindExternal, Message: message, Cause: cause}
}

func verificationErrorf(format string, args ...any) StageError {
	return StageError{Kind: ErrorKindVerification, Message: fmt.Sprintf(format, args...)}
}

func errorMessages(errs []StageError) []string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return msgs
}

func countItemErrors(errs []StageError) int {
	n := 0
	for _, err := range errs {
		if err.Kind == ErrorKindItem {
			n++
		}
	}
	return n
}
