package faceprep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/esimov/faceprep/utils"
	"github.com/schollz/progressbar/v3"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// listBatch is the number of directory entries read at once.
const listBatch = 64

// Ops holds the batch level options.
type Ops struct {
	Src, Dst string
	Workers  int
	// Logger receives the trace lines. Defaults to stderr without prefix.
	Logger *log.Logger
	// Progress replaces the per-file trace lines with a progress bar.
	Progress bool
	// MetricsFile, when set, receives the run metrics in the Prometheus text format.
	MetricsFile string
}

// Stats is the tally of a run.
type Stats struct {
	Processed  int
	NoFace     int
	Unreadable int
	Failed     int
	Elapsed    time.Duration
}

func (s *Stats) add(st Status) {
	switch st {
	case Processed:
		s.Processed++
	case SkippedNoFace:
		s.NoFace++
	case SkippedUnreadable:
		s.Unreadable++
	case Failed:
		s.Failed++
	}
}

// Total returns the number of visited entries.
func (s Stats) Total() int {
	return s.Processed + s.NoFace + s.Unreadable + s.Failed
}

func (s Stats) String() string {
	return fmt.Sprintf("%d processed, %d without face, %d unreadable, %d failed (%d total)",
		s.Processed, s.NoFace, s.Unreadable, s.Failed, s.Total())
}

// result holds the outcome of processing one directory entry.
type result struct {
	in, out string
	status  Status
	err     error
}

// Execute runs the processor over every entry of the source directory and
// writes the processed faces under the destination directory, using the same
// file names. If the source is a regular file, the destination is the output
// file (or the directory receiving it).
//
// Per-file failures are reported and counted but never abort the run. The
// returned error is set only when the run could not proceed: source missing
// or unreadable, destination not creatable, cancelled context.
func (op *Ops) Execute(ctx context.Context, p *Processor) (Stats, error) {
	var stats Stats
	if err := p.Validate(); err != nil {
		return stats, err
	}
	now := time.Now()
	metrics := newRunMetrics()

	fs, err := os.Stat(op.Src)
	if err != nil {
		return stats, fmt.Errorf("failed to load the source: %w", err)
	}

	switch mode := fs.Mode(); {
	case mode.IsDir():
		stats, err = op.executeDir(ctx, p, metrics)
		if err != nil {
			return stats, err
		}
	case mode.IsRegular():
		res := op.executeFile(p)
		stats.add(res.status)
		metrics.observe(res.status)
		op.report(res)
	default:
		return stats, fmt.Errorf("%s is neither a directory nor a regular file", op.Src)
	}

	stats.Elapsed = time.Since(now)
	metrics.finish(stats.Elapsed)

	logger := op.logger()
	logger.Println(utils.DecorateText("\nPreprocessing complete.", utils.SuccessMessage))
	logger.Printf("%s\n", stats)
	logger.Printf("Execution time: %s\n", utils.DecorateText(utils.FormatTime(stats.Elapsed), utils.SuccessMessage))

	if op.MetricsFile != "" {
		if err := metrics.writeTo(op.MetricsFile); err != nil {
			logger.Println(utils.DecorateText(fmt.Sprintf("[WARNING] Could not write the metrics file: %v", err), utils.WarningMessage))
		}
	}
	return stats, nil
}

// executeDir processes the source directory entries concurrently.
func (op *Ops) executeDir(parent context.Context, p *Processor, metrics *runMetrics) (Stats, error) {
	var stats Stats

	// The destination must exist before any worker writes into it.
	if err := os.MkdirAll(op.Dst, 0755); err != nil {
		return stats, fmt.Errorf("unable to create the destination directory: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	names, errc, err := listDir(ctx, op.Src)
	if err != nil {
		return stats, fmt.Errorf("unable to read the source directory: %w", err)
	}

	workers := op.Workers
	// Limit the concurrently running workers to maxWorkers.
	if workers <= 0 || workers > maxWorkers {
		workers = utils.Min(runtime.NumCPU(), maxWorkers)
	}

	var bar *progressbar.ProgressBar
	if op.Progress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("faceprep"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	ch := make(chan result)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			op.consumer(ctx, p, names, ch)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	// Consume the channel values. Only this goroutine writes the trace.
	for res := range ch {
		stats.add(res.status)
		metrics.observe(res.status)
		if bar != nil {
			_ = bar.Add(1)
			continue
		}
		op.report(res)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := parent.Err(); err != nil {
		return stats, err
	}
	if err := <-errc; err != nil {
		return stats, fmt.Errorf("unable to read the source directory: %w", err)
	}
	return stats, nil
}

// executeFile processes a single source file. The destination is either an
// output file or a directory receiving the file under its source name.
func (op *Ops) executeFile(p *Processor) result {
	out := op.Dst
	fi, err := os.Stat(out)
	switch {
	case err == nil && fi.IsDir():
		out = filepath.Join(out, filepath.Base(op.Src))
	case err != nil && filepath.Ext(out) == "":
		// A missing destination without extension names the output directory.
		if err := os.MkdirAll(out, 0755); err != nil {
			return result{in: op.Src, out: out, status: Failed, err: err}
		}
		out = filepath.Join(out, filepath.Base(op.Src))
	default:
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return result{in: op.Src, out: out, status: Failed, err: err}
		}
	}

	status, err := p.ProcessFile(op.Src, out)
	return result{in: op.Src, out: out, status: status, err: err}
}

// consumer reads the entry names from the names channel, calls the processor
// against the source image and sends the results on the res channel.
// It stops picking new entries once the context is cancelled.
func (op *Ops) consumer(
	ctx context.Context,
	p *Processor,
	names <-chan string,
	res chan<- result,
) {
	for name := range names {
		if ctx.Err() != nil {
			return
		}
		in := filepath.Join(op.Src, name)
		out := filepath.Join(op.Dst, name)
		status, err := p.ProcessFile(in, out)

		res <- result{in: in, out: out, status: status, err: err}
	}
}

// report prints the trace line of a processed entry.
func (op *Ops) report(res result) {
	logger := op.logger()

	switch res.status {
	case Processed:
		logger.Println(utils.DecorateText("[OK] Processed: "+res.out, utils.SuccessMessage))
	case SkippedNoFace:
		logger.Println(utils.DecorateText("[INFO] No face detected: "+res.in, utils.StatusMessage))
	case SkippedUnreadable:
		logger.Println(utils.DecorateText("[WARNING] Could not read image: "+res.in, utils.WarningMessage))
	default:
		logger.Println(utils.DecorateText(
			fmt.Sprintf("[ERROR] Could not process image: %s (%v)", res.in, res.err),
			utils.ErrorMessage,
		))
	}
}

func (op *Ops) logger() *log.Logger {
	if op.Logger == nil {
		op.Logger = log.New(os.Stderr, "", 0)
	}
	return op.Logger
}

// listDir opens the directory and starts a goroutine which sends the name of
// every entry, files and subdirectories alike, on the returned channel.
// The directory is read in batches, so the listing is lazy.
// The error channel receives the outcome of the listing once it finishes.
// It terminates in case the context gets cancelled.
func listDir(ctx context.Context, dir string) (<-chan string, <-chan error, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !fi.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s is not a directory", dir)
	}

	nameChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer f.Close()
		// Close the names channel after the listing returns.
		defer close(nameChan)

		for {
			entries, err := f.ReadDir(listBatch)
			for _, e := range entries {
				select {
				case <-ctx.Done():
					errChan <- errors.New("directory listing cancelled")
					return
				case nameChan <- e.Name():
				}
			}
			if errors.Is(err, io.EOF) {
				errChan <- nil
				return
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()
	return nameChan, errChan, nil
}
