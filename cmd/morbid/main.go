package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/deadonfilm/morbid/internal/cli"
)

// Exit codes. Cron wrappers treat "still processing" as reschedule,
// not failure.
const (
	exitOK              = 0
	exitError           = 1
	exitStillProcessing = 3
)

func main() {
	err := cli.Execute()
	if err == nil {
		os.Exit(exitOK)
	}
	if errors.Is(err, cli.ErrStillProcessing) {
		os.Exit(exitStillProcessing)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitError)
}
