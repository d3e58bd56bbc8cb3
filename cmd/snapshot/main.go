// Command snapshot assembles one locality's heat insight snapshot from the
// dataset directory and writes it as JSON, CSV, or XLSX.
//
// Usage:
//
//	go run ./cmd/snapshot \
//	  -data-dir data \
//	  -locality Imus \
//	  -days 14 \
//	  -format xlsx \
//	  -out imus.xlsx
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/heat-insight-engine/internal/dataset"
	"github.com/couchcryptid/heat-insight-engine/internal/domain"
	"github.com/couchcryptid/heat-insight-engine/internal/export"
	"github.com/couchcryptid/heat-insight-engine/internal/locality"
	"github.com/couchcryptid/heat-insight-engine/internal/observability"
	"github.com/couchcryptid/heat-insight-engine/internal/snapshot"
)

const formatJSON = "json"

type options struct {
	dataDir    string
	localities string
	name       string
	days       int
	format     string
	out        string
	at         string
}

func main() {
	var opts options
	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing the dataset files")
	flag.StringVar(&opts.localities, "localities", "", "locality registry file (default <data-dir>/localities.yaml)")
	flag.StringVar(&opts.name, "locality", "", "locality to assemble")
	flag.IntVar(&opts.days, "days", snapshot.DefaultDays, "analysis window in days")
	flag.StringVar(&opts.format, "format", formatJSON, "output format: json, csv, or xlsx")
	flag.StringVar(&opts.out, "out", "", "output file (default stdout)")
	flag.StringVar(&opts.at, "at", "", "assemble as of this RFC3339 time instead of now")
	flag.Parse()

	if opts.name == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintln(os.Stderr, "snapshot:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	opts.format = strings.ToLower(opts.format)
	if opts.format != formatJSON && opts.format != export.FormatCSV && opts.format != export.FormatXLSX {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.at != "" {
		at, err := time.Parse(time.RFC3339, opts.at)
		if err != nil {
			return fmt.Errorf("invalid -at: %w", err)
		}
		snapshot.SetClock(clockwork.NewFakeClockAt(at))
		defer snapshot.SetClock(nil)
	}

	logger := observability.NewLogger("warn", "text")
	loader := dataset.NewLoader(dataset.FileSource{Dir: opts.dataDir}, dataset.DefaultFiles)

	registry, err := registryFor(ctx, opts, loader)
	if err != nil {
		return err
	}
	assembler := snapshot.New(loader, registry, logger, observability.NewMetrics())

	snap, err := assembler.Assemble(ctx, snapshot.Query{Locality: opts.name, Days: opts.days})
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return write(w, opts.format, snap)
}

func write(w io.Writer, format string, snap domain.InsightSnapshot) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return export.Write(w, format, snap)
}

// registryFor loads the locality registry, falling back to the localities the
// hourly dataset lists when no registry file exists.
func registryFor(ctx context.Context, opts options, loader *dataset.Loader) (*locality.Registry, error) {
	path := opts.localities
	if path == "" {
		path = filepath.Join(opts.dataDir, "localities.yaml")
	}
	registry, err := locality.Load(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return registry, err
	}

	found, err := loader.Localities(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]locality.Entry, 0, len(found))
	for _, l := range found {
		entries = append(entries, locality.Entry{Name: l.Name, Latitude: l.Latitude, Longitude: l.Longitude})
	}
	registry = locality.New("", entries)
	if registry.Len() == 0 {
		return nil, locality.ErrEmptyRegistry
	}
	return registry, nil
}
