package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"photoshelf/internal/app"
	"photoshelf/internal/ingest"
	"photoshelf/internal/logging"
	"photoshelf/internal/mediatypes"
	"photoshelf/internal/memory"
	"photoshelf/internal/startup"
	"photoshelf/internal/workers"

	"github.com/spf13/cobra"
)

// errImportFailed is returned when at least one file was not imported.
var errImportFailed = errors.New("import finished with failures")

type options struct {
	configFile     string
	album          string
	skipDuplicates bool
	deleteImported bool
	workers        int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "photoimport [flags] PATH...",
		Short: "Import photos and videos from the filesystem into the library",
		Long: `photoimport runs files through the same pipeline as uploads. Directories
are walked recursively; files with unsupported extensions are ignored.
A failed file is reported and the import carries on with the rest.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	flags.StringVar(&opts.album, "album", "", `target album id, or "s" (public), "f" (starred), "r" (recent)`)
	flags.BoolVar(&opts.skipDuplicates, "skip-duplicates", false, "skip files whose content is already in the library")
	flags.BoolVar(&opts.deleteImported, "delete-imported", false, "delete source files once imported")
	flags.IntVar(&opts.workers, "workers", 0, "concurrent imports (0 derives it from the CPU count)")

	return cmd
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	ctx := cmd.Context()

	target, err := ingest.ParseTarget(opts.album)
	if err != nil {
		return err
	}

	memResult := memory.ConfigureFromEnv()

	cfg, err := startup.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("skip-duplicates") {
		cfg.SkipDuplicates = opts.skipDuplicates
	}
	if cmd.Flags().Changed("delete-imported") {
		cfg.DeleteImported = opts.deleteImported
	}
	if cmd.Flags().Changed("workers") {
		cfg.ImportWorkers = opts.workers
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No importable files found")
		return nil
	}

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Warn("Close failed: %v", err)
		}
	}()

	memConfig := memory.DefaultConfig()
	if memResult.Configured {
		memConfig.MemoryLimitBytes = memResult.GoMemLimit
	}
	monitor := memory.NewMonitor(memConfig)
	monitor.Start()
	defer monitor.Stop()

	if last, err := a.DB.GetLastImportRun(ctx); err != nil {
		logging.Warn("Could not read the last import time: %v", err)
	} else if !last.IsZero() {
		logging.Info("Previous import finished %s", last.Local().Format(time.RFC1123))
	}

	n := cfg.ImportWorkers
	if n <= 0 {
		n = workers.ForMixed(0)
	}
	logging.Info("Importing %d files with %d workers", len(files), n)

	imp := &importer{pipeline: a.Pipeline, gate: monitor, target: target}
	workers.Run(ctx, n, files, imp.importFile)

	sum := imp.summary()
	sum.print(cmd.OutOrStdout())
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.DB.SetLastImportRun(ctx, time.Now()); err != nil {
		logging.Warn("Could not record the import time: %v", err)
	}
	if sum.failed > 0 {
		return fmt.Errorf("%w: %d of %d files", errImportFailed, sum.failed, len(files))
	}
	return nil
}

// collectFiles expands directories into the importable files below them.
// Files named explicitly are kept even with an unknown extension so the
// pipeline can report them.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && d.Name()[0] == '.' {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && mediatypes.IsValidExtension(d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// Gate holds back new imports while memory is short.
type Gate interface {
	WaitIfPaused(ctx context.Context) error
}

// Ingester runs one file through the pipeline.
type Ingester interface {
	Add(ctx context.Context, up ingest.Upload, opts ingest.Options) (*ingest.Result, error)
}

type importer struct {
	pipeline Ingester
	gate     Gate
	target   ingest.Target

	mu       sync.Mutex
	imported int
	dedup    int
	skipped  int
	failures []failure
}

type failure struct {
	path string
	msg  string
}

func (imp *importer) importFile(ctx context.Context, path string) {
	if imp.gate != nil {
		if err := imp.gate.WaitIfPaused(ctx); err != nil {
			return
		}
	}

	up := ingest.Upload{
		Path:     path,
		MimeType: mediatypes.GetMimeType(mediatypes.Extension(path)),
		Filename: filepath.Base(path),
	}
	res, err := imp.pipeline.Add(ctx, up, ingest.Options{Target: imp.target, Soft: true})

	imp.mu.Lock()
	defer imp.mu.Unlock()

	switch {
	case err != nil:
		imp.failures = append(imp.failures, failure{path: path, msg: err.Error()})
		logging.Error("Failed to import %s: %v", path, err)
	case res.OK && res.DedupHit:
		imp.dedup++
		logging.Info("Imported %s as %s (existing file reused)", path, res.ID)
	case res.OK:
		imp.imported++
		logging.Info("Imported %s as %s", path, res.ID)
	case res.Err != nil && res.Err.Kind == ingest.KindDuplicateSkipped:
		imp.skipped++
		logging.Info("Skipped %s: %s", path, res.Err.Message())
	case res.Err != nil:
		imp.failures = append(imp.failures, failure{path: path, msg: res.Err.Message()})
		logging.Error("Failed to import %s: %v", path, res.Err)
	default:
		imp.failures = append(imp.failures, failure{path: path, msg: "unknown error"})
	}
}

type summary struct {
	imported, dedup, skipped, failed int
	failures                         []failure
}

func (imp *importer) summary() summary {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	failures := append([]failure(nil), imp.failures...)
	sort.Slice(failures, func(i, j int) bool { return failures[i].path < failures[j].path })
	return summary{
		imported: imp.imported,
		dedup:    imp.dedup,
		skipped:  imp.skipped,
		failed:   len(failures),
		failures: failures,
	}
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "Imported: %d  Reused: %d  Skipped: %d  Failed: %d\n", s.imported, s.dedup, s.skipped, s.failed)
	for _, f := range s.failures {
		fmt.Fprintf(w, "  %s: %s\n", f.path, f.msg)
	}
}
