// affectctl - control a running affect dashboard from the command line
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-affect/internal/httpc"
	"github.com/teslashibe/go-affect/pkg/web"
)

const usage = `Usage: affectctl [-addr URL] <command> [args]

Commands:
  status              Show the displayed emotion and distribution
  watch               Follow the displayed emotion live
  stats               Show pipeline counters
  emotions            List the emotion catalog
  start|stop|restart  Control the session
  camera key=value... Change camera settings, e.g. preset=720p or device_index=1
`

func main() {
	addr := flag.String("addr", envOr("AFFECT_ADDR", "http://localhost:8080"), "Dashboard address")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if flag.Arg(0) != "watch" {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	api := httpc.NewAPI(*addr, nil)
	if err := run(ctx, api, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, api *httpc.API, cmd string, args []string) error {
	switch cmd {
	case "status":
		st, err := api.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("State:      %s %s\n", st.State, st.Session)
		fmt.Printf("Display:    %s %s\n", st.Icon, st.Display)
		fmt.Printf("Confidence: %.0f%% over %d samples\n", st.Confidence*100, st.Samples)
		for _, name := range st.Labels {
			fmt.Printf("  %-10s %3d%%\n", name, st.Percent[name])
		}
		if st.LastError != "" {
			fmt.Printf("Last error: %s\n", st.LastError)
		}

	case "watch":
		err := api.Watch(ctx, func(st web.DashboardState) bool {
			fmt.Printf("%s %-10s %3d%% (confidence %.0f%%, faces %d)\n",
				time.Now().Format("15:04:05"), st.Display, st.Percent[st.Display], st.Confidence*100, st.Faces)
			return true
		})
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	case "stats":
		s, err := api.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("State %s, uptime %s, display %s, history %d\n", s.State, s.Uptime.Round(time.Second), s.Display, s.History)
		fmt.Printf("Capture:   frames %d, processed %d, faces %d, read errors %d\n",
			s.Capture.Frames, s.Capture.Processed, s.Capture.Faces, s.Capture.ReadErrors)
		fmt.Printf("Inference: jobs %d, samples %d, errors %d, dropped %d\n",
			s.Inference.Jobs, s.Inference.Samples, s.Inference.Errors, s.Inference.Dropped)
		fmt.Printf("Events:    sent %d, dropped %d\n", s.EventsSent, s.EventsDropped)

	case "emotions":
		entries, err := api.Emotions(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s %s: %s\n", e.Icon, e.Name, e.Description)
		}

	case "start", "stop", "restart":
		var (
			resp httpc.SessionResponse
			err  error
		)
		switch cmd {
		case "start":
			resp, err = api.Start(ctx)
		case "stop":
			resp, err = api.Stop(ctx)
		default:
			resp, err = api.Restart(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s %s\n", resp.State, resp.Session)

	case "camera":
		params, err := parseParams(args)
		if err != nil {
			return err
		}
		if err := api.UpdateCamera(ctx, params); err != nil {
			return err
		}
		fmt.Println("✅ camera updated")

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// parseParams turns key=value pairs into a JSON-ready map.
func parseParams(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("camera needs key=value arguments")
	}
	params := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad argument %q, want key=value", arg)
		}
		if n, err := strconv.Atoi(v); err == nil {
			params[k] = n
		} else if b, err := strconv.ParseBool(v); err == nil {
			params[k] = b
		} else {
			params[k] = v
		}
	}
	return params, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
