// Command l2replay reconstructs per-security Level-2 order books from a
// snapshot file and an incremental update file, then prints the final
// state of every book it saw.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/thrasher-corp/l2replay/internal/book"
	"github.com/thrasher-corp/l2replay/internal/buffered"
	"github.com/thrasher-corp/l2replay/internal/manager"
	"github.com/thrasher-corp/l2replay/internal/parsing"
)

func main() {
	app := &cli.App{
		Name:      "l2replay",
		Usage:     "reconstruct Level-2 order books from snapshot and incremental files",
		ArgsUsage: "<path-to-snapshot> <path-to-incremental>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print every decoded record before applying it"},
			&cli.IntFlag{Name: "max-pending", Value: buffered.MaxPending, Usage: "per-security pending update capacity"},
			&cli.BoolFlag{Name: "log-json", Usage: "emit structured logs as JSON instead of text"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("expected exactly two positional arguments: snapshot path, incremental path", 1)
	}
	snapshotPath := c.Args().Get(0)
	incrementalPath := c.Args().Get(1)

	logger := newLogger(c.Bool("log-json"))
	mgr := manager.New(c.Int("max-pending"))

	if c.Bool("verbose") {
		printRawSnapshots(logger, snapshotPath)
		printRawUpdates(logger, incrementalPath)
	}

	if err := applySnapshots(logger, snapshotPath, mgr); err != nil {
		return cli.Exit(err, 1)
	}
	if err := applyUpdates(logger, incrementalPath, mgr); err != nil {
		return cli.Exit(err, 1)
	}

	fmt.Print(mgr.String())
	return nil
}

func newLogger(asJSON bool) *slog.Logger {
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func printRawSnapshots(logger *slog.Logger, path string) {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to open snapshot file for verbose printing", "path", path, "error", err)
		return
	}
	defer f.Close()

	reader := parsing.NewSnapshotReader(f)
	count := 0
	for {
		snap, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("stopped verbose snapshot printing early", "path", path, "error", err)
			break
		}
		fmt.Printf("%+v\n", snap)
		count++
	}
	logger.Info("printed snapshot records", "path", path, "count", count)
}

func printRawUpdates(logger *slog.Logger, path string) {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to open incremental file for verbose printing", "path", path, "error", err)
		return
	}
	defer f.Close()

	reader := parsing.NewUpdateReader(f)
	count := 0
	for {
		upd, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("stopped verbose update printing early", "path", path, "error", err)
			break
		}
		fmt.Printf("timestamp=%d seq=%d security=%d\n", upd.Timestamp, upd.SeqNo, upd.SecurityID)
		count++
	}
	logger.Info("printed update records", "path", path, "count", count)
}

// applySnapshots decodes every snapshot record from path and applies it
// to mgr, in order. Decode failures are fatal: the file is corrupted
// and the run cannot continue meaningfully.
func applySnapshots(logger *slog.Logger, path string, mgr *manager.Manager) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening snapshot file %s", path)
	}
	defer f.Close()

	reader := parsing.NewSnapshotReader(f)
	for {
		snap, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "reading snapshot record from %s: file is corrupted", path)
		}
		if err := mgr.ApplySnapshot(snap); err != nil {
			logRecordError(logger, "Snapshot", snap.SecurityID, snap.SeqNo, err)
		}
	}
}

// applyUpdates decodes every update record from path and applies it to
// mgr, in order.
func applyUpdates(logger *slog.Logger, path string, mgr *manager.Manager) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening incremental file %s", path)
	}
	defer f.Close()

	reader := parsing.NewUpdateReader(f)
	for {
		upd, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "reading update record from %s: file is corrupted", path)
		}
		if err := mgr.ApplyUpdate(upd); err != nil {
			logRecordError(logger, "Update", upd.SecurityID, upd.SeqNo, err)
		}
	}
}

// logRecordError dispatches one record's apply error exactly as the
// source's own driver does: invalid data is logged and skipped,
// security id mismatches are logged as an internal bug, and routing or
// sequencing conditions (not found, gap, old) are expected steady-state
// noise and stay silent.
func logRecordError(logger *slog.Logger, recordType string, securityID, seqNo uint64, err error) {
	var invalidPrice book.InvalidPriceError
	var invalidSide book.InvalidSideError
	switch {
	case errors.As(err, &invalidPrice):
		logger.Warn(fmt.Sprintf("%s has invalid price, record ignored", recordType),
			"security_id", securityID, "seq_no", seqNo, "error", invalidPrice.Msg)
	case errors.As(err, &invalidSide):
		logger.Warn(fmt.Sprintf("%s has invalid side, record ignored", recordType),
			"security_id", securityID, "seq_no", seqNo, "error", invalidSide.Msg)
	case errors.Is(err, book.ErrSecurityIDMismatch):
		logger.Error("internal error: security id mismatch", "security_id", securityID, "seq_no", seqNo)
	case errors.Is(err, manager.ErrOrderBookNotFound),
		errors.Is(err, book.ErrSequenceNumberGap),
		errors.Is(err, book.ErrOldSequenceNumber):
		// Expected steady-state conditions; no log.
	default:
		logger.Error("unexpected error applying record", "type", recordType, "security_id", securityID, "seq_no", seqNo, "error", err)
	}
}
