// Command segdb is a small operator tool around the storage engine.
//
//	segdb [-config path] [-dir path] put KEY VALUE
//	segdb [-config path] [-dir path] get KEY
//	segdb [-config path] [-dir path] del KEY
//	segdb [-config path] [-dir path] scan [FROM [TO]]
//	segdb [-config path] [-dir path] compact
//	segdb [-config path] [-dir path] stats
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"segdb/pkg/dberrors"
	"segdb/pkg/store"
)

var errUsage = errors.New("usage: segdb [-config path] [-dir path] put|get|del|scan|compact|stats [args]")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", "config.yaml", "path to YAML config")
	dir := flag.String("dir", "", "data directory, overrides db.persistence.path")
	flag.Parse()

	cfg, err := initConfig(*configPath, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}
	logger := initLogger(&cfg)

	st, err := store.Open(cfg, store.WithLogger(logger))
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	runErr := run(ctx, st, os.Stdout, flag.Args())
	if err := st.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		if errors.Is(runErr, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, st *store.Store, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, args := args[0], args[1:]
	switch {
	case cmd == "put" && len(args) == 2:
		return st.PutString(args[0], args[1])

	case cmd == "get" && len(args) == 1:
		value, found, err := st.GetString(args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s: %w", args[0], dberrors.ErrNotFound)
		}
		fmt.Fprintln(out, value)
		return nil

	case cmd == "del" && len(args) == 1:
		return st.DeleteString(args[0])

	case cmd == "scan" && len(args) <= 2:
		var from, to []byte
		if len(args) > 0 {
			from = []byte(args[0])
		}
		if len(args) > 1 {
			to = []byte(args[1])
		}

		it := st.Scan(from, to)
		defer it.Close()
		for ; it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%s\n", it.Key(), it.Value())
		}
		return it.Err()

	case cmd == "compact" && len(args) == 0:
		return st.Compact()

	case cmd == "stats" && len(args) == 0:
		s := st.Stats()
		fmt.Fprintf(out, "memtable: %d entries, %d bytes\n", s.MemtableEntries, s.MemtableBytes)
		for _, seg := range s.Disk.Segments {
			fmt.Fprintf(out, "segment %d: %s, %d records, %d bytes\n", seg.ID, seg.Path, seg.Records, seg.Bytes)
		}
		fmt.Fprintf(out, "total: %d segments, %d records, %d bytes\n", len(s.Disk.Segments), s.Disk.Records, s.Disk.Bytes)
		fmt.Fprintf(out, "mappings: %d\n", s.Disk.Mappings)
		return nil
	}

	return errUsage
}
