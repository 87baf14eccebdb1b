package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"paper-filter/logger"
	"paper-filter/processor"
	"paper-filter/review"
)

const reviewHelp = "y = keep, n = reject, b = back, r = reset, q = quit"

// runReview drives the swipe session from line input until the user quits
// or input ends.
func runReview(ctx context.Context, ws *processor.Workspace, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, reviewHelp)

	for {
		record, progress, ok, err := ws.Current(ctx)
		if err != nil {
			return err
		}
		switch {
		case progress.State == review.StateEmpty:
			fmt.Fprintln(out, "Nothing to review")
			return nil
		case ok:
			fmt.Fprintf(out, "[%d/%d] %s\n", progress.Cursor+1, progress.Total, record.Title)
		default:
			fmt.Fprintf(out, "Review complete: %d kept, %d rejected (b/r/q)\n", progress.Kept, progress.Rejected)
		}
		fmt.Fprint(out, "> ")

		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		command := strings.ToLower(strings.TrimSpace(scanner.Text()))
		switch command {
		case "q", "quit":
			return nil
		case "b", "back":
			_, err = ws.Previous(ctx)
		case "r", "reset":
			_, err = ws.ResetSession(ctx)
		case "":
			continue
		default:
			decision, parseErr := review.ParseDecision(command)
			if parseErr != nil {
				fmt.Fprintln(out, reviewHelp)
				continue
			}
			_, err = ws.Decide(ctx, decision == review.Keep)
		}

		if err != nil {
			if !logger.IsErrorType(err, logger.ErrorTypeSession) {
				return err
			}
			fmt.Fprintln(out, err)
		}
	}
}
