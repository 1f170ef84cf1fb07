package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
)

// JobsAPI is the subset of JobsCLI used by the jobs command.
type JobsAPI interface {
	Trigger(ctx context.Context, name string, asOf time.Time) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

const jobsUsage = `usage:
  workshop jobs trigger <job> [-as-of YYYY-MM-DD]
  workshop jobs stats`

// RunJobs executes `workshop jobs ...` and returns the process exit code.
func RunJobs(ctx context.Context, api JobsAPI, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, jobsUsage)
		return 2
	}
	switch args[0] {
	case "trigger":
		return runTrigger(ctx, api, args[1:], stdout, stderr)
	case "stats":
		stats, err := api.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "inspect queue: %v\n", err)
			return 1
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			fmt.Fprintf(stderr, "encode stats: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "unknown jobs command %q\n%s\n", args[0], jobsUsage)
		return 2
	}
}

func runTrigger(ctx context.Context, api JobsAPI, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, jobsUsage)
		return 2
	}
	name := args[0]
	fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asOfRaw := fs.String("as-of", "", "reference date (YYYY-MM-DD), defaults to now")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	var asOf time.Time
	if *asOfRaw != "" {
		parsed, err := time.Parse("2006-01-02", *asOfRaw)
		if err != nil {
			fmt.Fprintf(stderr, "invalid -as-of %q: expected YYYY-MM-DD\n", *asOfRaw)
			return 2
		}
		asOf = parsed
	}
	info, err := api.Trigger(ctx, name, asOf)
	if err != nil {
		fmt.Fprintf(stderr, "trigger %s: %v\n", name, err)
		return 1
	}
	fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return 0
}
