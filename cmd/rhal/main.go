// Command rhal sends one request to a rhal server and prints the answer.
//
// Usage:
//
//	rhal [-s 127.0.0.1:10004] [-timeout 3s] [-log-level warn] <device> <command> [args...]
//	rhal ping
//
// Byte data is written as hex, e.g. 0xaabb or "aa:bb" or "[aa, bb]".
// Bindings outlive the connection of the CLI, so a device stays bound between
// a connect command and the matching disconnect command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arloliu/go-rhal/client"
	"github.com/arloliu/go-rhal/logger"
	"github.com/arloliu/go-rhal/rhal"
)

const (
	exitOK = iota
	exitUsage
	exitConnect
	exitTimeout
	exitRemote
	exitBinding
	exitConnClosed
	exitOther
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rhal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("s", "127.0.0.1:10004", "Address of the rhal server")
	timeout := fs.Duration("timeout", 3*time.Second, "Request timeout")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	fs.Usage = func() { usage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(stderr, "rhal:", err)
		return exitUsage
	}
	log := logger.NewSlogWriter(stderr, level, false)

	device, name, cmdArgs, ok := splitArgs(fs.Args())
	if !ok {
		fs.Usage()
		return exitUsage
	}
	kind, err := buildRequest(name, cmdArgs)
	if err != nil {
		fmt.Fprintln(stderr, "rhal:", err)
		return exitUsage
	}

	cfg, err := client.ParseAddr(*addr, client.WithLogger(log), client.WithRequestTimeout(*timeout))
	if err != nil {
		fmt.Fprintln(stderr, "rhal:", err)
		return exitUsage
	}

	ctx := context.Background()
	c, err := client.Dial(ctx, cfg)
	if err != nil {
		fmt.Fprintln(stderr, "rhal:", err)
		return exitConnect
	}
	defer c.Close()

	log.Debug("sending request", "device", device, "kind", rhal.KindString(kind))

	rsp, err := c.Request(ctx, device, kind)
	if err == nil {
		var out string
		if out, err = formatResponse(rsp); err == nil {
			fmt.Fprintln(stdout, out)
			return exitOK
		}
	}

	fmt.Fprintln(stderr, "rhal:", err)
	return exitCode(err)
}

// splitArgs separates <device> <command> [args...]. ping alone needs no device.
func splitArgs(args []string) (device, name string, rest []string, ok bool) {
	switch {
	case len(args) == 1 && args[0] == "ping":
		return "", "ping", nil, true
	case len(args) >= 2:
		return args[0], args[1], args[2:], true
	default:
		return "", "", nil, false
	}
}

func exitCode(err error) int {
	var remoteErr *rhal.RemoteError

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, rhal.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return exitTimeout
	case errors.As(err, &remoteErr):
		return exitRemote
	case errors.Is(err, rhal.ErrDeviceAlreadyBound), errors.Is(err, rhal.ErrDeviceNotBound):
		return exitBinding
	case errors.Is(err, rhal.ErrConnClosed):
		return exitConnClosed
	default:
		return exitOther
	}
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, "Usage: rhal [options] <device> <command> [args...]\n\nOptions:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.args)
	}
	fmt.Fprintf(w, "\nExit codes: 0 ok, 1 usage, 2 connect, 3 timeout, 4 remote error, 5 binding conflict, 6 connection closed, 7 other\n")
}
