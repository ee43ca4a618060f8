// Command hostctl opens a session to a managed host and prints its data.
//
//	hostctl data -endpoint 10.0.0.5:7101 -token secret
//	hostctl data -payload bootstrap.yaml -pointer /os_release/ID
//	hostctl data -discover -db snapshots.db
//	hostctl history -db snapshots.db -host web-1
//	hostctl schema
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hostlink/internal/codec"
	"hostlink/internal/config"
	"hostlink/internal/domain"
	"hostlink/internal/host"
	"hostlink/internal/logging"
	"hostlink/internal/repository"
	"hostlink/internal/repository/sqlite"
	"hostlink/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: hostctl <data|history|schema> [flags]")
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "data":
		err = runData(ctx, args[1:], stdin, stdout, stderr)
	case "history":
		err = runHistory(ctx, args[1:], stdout, stderr)
	case "schema":
		err = runSchema(stdout)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		usage(stderr)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			fmt.Fprintf(stderr, "hostctl: %s: %s\n", de.Kind, de.Message)
		} else {
			fmt.Fprintf(stderr, "hostctl: %v\n", err)
		}
		return 1
	}
	return 0
}

// loadConfig reads the named file, or searches the default locations
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, _, err = config.LoadFromPath(path)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	logging.Install(cfg.LoggingConfig(logging.ProfileRuntime))
	return cfg, nil
}

func runData(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("data", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (default: search standard locations)")
	endpoint := fs.String("endpoint", "", "agent or ssh address host:port")
	transportName := fs.String("transport", "", "transport for -endpoint: tcp, tls or ssh")
	token := fs.String("token", "", "agent hello token")
	user := fs.String("user", "", "ssh user")
	payloadPath := fs.String("payload", "", "bootstrap payload file, - for stdin")
	discover := fs.Bool("discover", false, "locate an agent with the configured discovery method")
	pointer := fs.String("pointer", "", "print only the value at this JSON pointer")
	format := fs.String("format", "json", "output format: json or yaml")
	dbPath := fs.String("db", "", "save a snapshot to this database")
	hostName := fs.String("host", "", "snapshot host name (default: endpoint or hostname fact)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	modes := 0
	for _, set := range []bool{*endpoint != "", *payloadPath != "", *discover} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("exactly one of -endpoint, -payload or -discover is required")
	}

	exporter, err := codec.ForFormat(*format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	discoverer, err := cfg.Discoverer()
	if err != nil {
		return err
	}
	var opts []transport.Option
	if discoverer != nil {
		opts = append(opts, transport.WithDiscoverer(discoverer))
	}
	sel := transport.NewSelector(cfg.TransportConfig(), opts...)

	var params domain.ConnectionParams
	switch {
	case *endpoint != "":
		d := cfg.Descriptor()
		if *transportName != "" {
			d.Transport = *transportName
		}
		if *token != "" {
			d.Token = *token
		}
		if *user != "" {
			d.User = *user
		}
		params = domain.Endpoint(*endpoint, d)
	case *payloadPath != "":
		blob, err := readPayload(*payloadPath, stdin)
		if err != nil {
			return err
		}
		params = domain.Payload(blob)
	default:
		params = domain.Discovered()
	}

	h, err := host.Open(ctx, sel, params)
	if err != nil {
		return err
	}
	defer h.Release()

	v, err := h.Data(ctx)
	if err != nil {
		return err
	}

	if *dbPath != "" {
		name := *hostName
		if name == "" {
			name = snapshotName(*endpoint, v)
		}
		if err := saveSnapshot(ctx, *dbPath, name, h.Transport(), v); err != nil {
			return err
		}
	}

	if *pointer != "" {
		if v, err = v.Lookup(*pointer); err != nil {
			return err
		}
	}
	return exporter.Export(v, stdout)
}

func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return blob, nil
}

// snapshotName picks the endpoint address, then the hostname fact
func snapshotName(endpoint string, v domain.Value) string {
	if endpoint != "" {
		return endpoint
	}
	if h, ok := v.Get("hostname"); ok {
		if s, ok := h.Str(); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return "unknown"
}

func saveSnapshot(ctx context.Context, dbPath, name, transportName string, v domain.Value) error {
	repo, err := sqlite.New(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	return repo.SaveSnapshot(ctx, &repository.Snapshot{Host: name, Transport: transportName, Value: v})
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "./hostlink.db", "snapshot database")
	hostName := fs.String("host", "", "host to list; empty lists hosts")
	limit := fs.Int("limit", 10, "maximum snapshots to show, 0 for all")
	show := fs.Bool("show", false, "print the newest snapshot's data")
	format := fs.String("format", "json", "output format for -show: json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo, err := sqlite.New(*dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if *hostName == "" {
		hosts, err := repo.Hosts(ctx)
		if err != nil {
			return err
		}
		for _, h := range hosts {
			fmt.Fprintln(stdout, h)
		}
		return nil
	}

	if *show {
		exporter, err := codec.ForFormat(*format)
		if err != nil {
			return err
		}
		snap, err := repo.LatestSnapshot(ctx, *hostName)
		if err != nil {
			return fmt.Errorf("%s: %w", *hostName, err)
		}
		return exporter.Export(snap.Value, stdout)
	}

	snaps, err := repo.ListSnapshots(ctx, *hostName, *limit)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		transportName := s.Transport
		if transportName == "" {
			transportName = "-"
		}
		fmt.Fprintf(stdout, "%d\t%s\t%s\t%s\t%d\n", s.ID, s.CapturedAt.Format("2006-01-02T15:04:05Z07:00"),
			transportName, s.Value.Kind(), s.Value.Len())
	}
	return nil
}

func runSchema(stdout io.Writer) error {
	schema, err := transport.PayloadSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(schema))
	return err
}
