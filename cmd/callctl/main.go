// callctl places and inspects outbound calls from the command line, using
// the same configuration and platform client as the relay server.
//
// Usage:
//
//	callctl call <agent-id> <phone-number> [--max-duration N] [--record=false]
//	callctl status <call-id>
//	callctl watch <call-id>
//	callctl transcript <call-id>
//	callctl summary <call-id>
//	callctl list [--agent <agent-id>]
//
// Results are printed to stdout as JSON. watch prints one line per status
// change until the call completes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/tradevoice/internal/calls"
	"github.com/ashureev/tradevoice/internal/callwatch"
	"github.com/ashureev/tradevoice/internal/config"
	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/ashureev/tradevoice/internal/platform"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const usage = `usage: callctl <command> [flags]

commands:
  call <agent-id> <phone-number>   place an outbound call
  status <call-id>                 print the current call status
  watch <call-id>                  stream status changes until completion
  transcript <call-id>             print transcript and summary
  summary <call-id>                print the call summary
  list                             list calls (--agent to filter)
`

// usageError marks bad invocations so main can exit with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ue *usageError
		if errors.As(err, &ue) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usagef("missing command")
	}
	command, args := args[0], args[1:]

	fs := pflag.NewFlagSet("callctl "+command, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	maxDuration := fs.Int("max-duration", 0, "maximum call length in minutes (call)")
	record := fs.Bool("record", domain.DefaultRecord, "record the call (call)")
	agentFilter := fs.String("agent", "", "only list calls for this agent (list)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	// Logs go to stderr so stdout stays machine-readable.
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: max(level, slog.LevelWarn)}))

	client, err := platform.NewClient(platform.Credentials{
		APIKey:  cfg.Platform.APIKey,
		BaseURL: cfg.Platform.BaseURL,
	}, platform.NewHTTPClient(cfg.Platform.Timeout, "tradevoice-callctl"), logger)
	if err != nil {
		return err
	}
	manager := calls.NewManager(client, nil, logger)
	out := json.NewEncoder(stdout)

	positional := fs.Args()
	callID := func() (string, error) {
		if len(positional) != 1 {
			return "", usagef("%s takes exactly one call ID", command)
		}
		return positional[0], nil
	}

	switch command {
	case "call":
		if len(positional) != 2 {
			return usagef("call takes an agent ID and a phone number")
		}
		opts := domain.CallOptions{}
		if fs.Changed("max-duration") {
			opts.MaxDuration = maxDuration
		}
		if fs.Changed("record") {
			opts.Record = record
		}
		started, err := manager.Initiate(ctx, positional[0], positional[1], opts)
		if err != nil {
			return err
		}
		return out.Encode(started)

	case "status":
		id, err := callID()
		if err != nil {
			return err
		}
		status, err := manager.GetStatus(ctx, id)
		if err != nil {
			return err
		}
		return out.Encode(status)

	case "watch":
		id, err := callID()
		if err != nil {
			return err
		}
		poller := &callwatch.Poller{
			Source:      manager,
			Interval:    cfg.CallWatch.Interval,
			MaxInterval: cfg.CallWatch.MaxInterval,
			Timeout:     cfg.CallWatch.Timeout,
			Logger:      logger,
		}
		for status, err := range poller.Watch(ctx, id) {
			if err != nil {
				return err
			}
			if err := out.Encode(status); err != nil {
				return err
			}
		}
		return nil

	case "transcript":
		id, err := callID()
		if err != nil {
			return err
		}
		transcript, err := manager.GetTranscriptAndSummary(ctx, id)
		if err != nil {
			return err
		}
		return out.Encode(transcript)

	case "summary":
		id, err := callID()
		if err != nil {
			return err
		}
		summary, err := manager.GetSummary(ctx, id)
		if err != nil {
			return err
		}
		return out.Encode(summary)

	case "list":
		if len(positional) != 0 {
			return usagef("list takes no arguments")
		}
		list, err := manager.ListCalls(ctx, *agentFilter)
		if err != nil {
			return err
		}
		return out.Encode(list)

	default:
		return usagef("unknown command %q", command)
	}
}
