package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess          = 0 // Every experiment was summarised
	ExitExperimentFailed = 1 // One or more experiments failed
	ExitError            = 2 // Configuration or runtime error
)

// ExperimentFailureError indicates that the batch ran to completion but one
// or more experiments could not be summarised.
type ExperimentFailureError struct {
	Message string
}

func (e *ExperimentFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var failure *ExperimentFailureError
	if errors.As(err, &failure) {
		return ExitExperimentFailed
	}
	// All other errors are configuration/runtime errors
	return ExitError
}
