package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/berfenger/webbox2mqtt/pkg/webbox"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// webboxcli polls a device once and prints every reading, or keeps
// polling on an interval with -watch.
func main() {
	host := flag.String("host", "", "webbox host or IP (required)")
	port := flag.Uint("port", webbox.DefaultPort, "webbox UDP port")
	timeout := flag.Duration("timeout", webbox.DefaultTimeout, "per request timeout")
	interval := flag.Duration("interval", webbox.DefaultPollInterval, "poll interval for -watch")
	watch := flag.Bool("watch", false, "keep polling on the given interval")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *host == "" {
		fmt.Fprintln(os.Stderr, "usage: webboxcli -host <address> [-port N] [-timeout D] [-watch [-interval D]]")
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *debug {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	client, err := webbox.CreateClient(*host, *port, *timeout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	defer client.Close()

	poller := webbox.NewPoller(client, *interval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := poller.BuildModel(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: could not discover plant layout: %s\n", err)
		os.Exit(1)
	}

	if !*watch {
		snap, err := poller.PollOnce(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: poll failed: %s\n", err)
			os.Exit(1)
		}
		printSnapshot(snap)
		return
	}

	sched := quartz.NewStdScheduler()
	sched.Start(ctx)

	pollJob := job.NewFunctionJob(func(jobCtx context.Context) (int, error) {
		snap, err := poller.PollOnce(jobCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "poll failed: %s\n", err)
			return 0, err
		}
		printSnapshot(snap)
		return snap.Len(), nil
	})
	detail := quartz.NewJobDetail(pollJob, quartz.NewJobKey("poll"))
	if err := sched.ScheduleJob(detail, quartz.NewSimpleTrigger(*interval)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
	sched.Stop()
	poller.Stop()
}

func printSnapshot(snap *webbox.Snapshot) {
	fmt.Printf("-- snapshot at %s (%d readings)\n", snap.TakenAt.Format(time.RFC3339), snap.Len())
	for _, key := range snap.Keys {
		src, _ := snap.Get(key)
		fmt.Printf("%-50s %s\n", key.String(), formatReading(src))
	}
}

func formatReading(src webbox.SourceNode) string {
	if !src.Valid {
		return "n/a"
	}
	if src.Numeric() {
		if src.Unit != "" {
			return fmt.Sprintf("%.2f %s", src.Value, src.Unit)
		}
		return fmt.Sprintf("%.2f", src.Value)
	}
	return src.Text
}
