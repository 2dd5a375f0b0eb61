package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/esimov/faceprep"
	"github.com/esimov/faceprep/utils"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

const helpBanner = `
┌─┐┌─┐┌─┐┌─┐┌─┐┬─┐┌─┐┌─┐
├┤ ├─┤│  ├┤ ├─┘├┬┘├┤ ├─┘
└  ┴ ┴└─┘└─┘┴  ┴└─└─┘┴

Face dataset preprocessing tool.
    Version: %s

`

// Version indicates the current build version.
var Version string

func main() {
	log.SetFlags(0)

	// A missing .env file is not an error, the flags have built-in defaults.
	_ = godotenv.Load()

	dp := faceprep.DefaultDetectorParams()
	var (
		source       = flag.String("in", envString("FACEPREP_INPUT", "dataset/raw_images"), "Source directory or image")
		destination  = flag.String("out", envString("FACEPREP_OUTPUT", "dataset/processed_images"), "Destination directory or image")
		width        = flag.Int("width", faceprep.DefaultWidth, "Output width")
		height       = flag.Int("height", faceprep.DefaultHeight, "Output height")
		cascade      = flag.String("cc", envString("FACEPREP_CASCADE", ""), "Cascade classifier file or URL (defaults to the bundled pigo cascade)")
		haar         = flag.Bool("haar", false, "Use an OpenCV Haar cascade (XML) instead of a pigo cascade (requires the gocv build tag)")
		scaleFactor  = flag.Float64("scale", dp.ScaleFactor, "Scale factor between two detection scales")
		minNeighbors = flag.Int("neighbors", dp.MinNeighbors, "Minimum number of neighbouring detections of a face")
		minSize      = flag.Int("min", dp.MinSize, "Minimum face size")
		maxSize      = flag.Int("max", dp.MaxSize, "Maximum face size")
		shiftFactor  = flag.Float64("shift", dp.ShiftFactor, "Shift detection window by percentage")
		iouThreshold = flag.Float64("iou", dp.IoUThreshold, "Intersection over union (IoU) threshold")
		qThreshold   = flag.Float64("q", dp.QThreshold, "Minimum detection score")
		angle        = flag.Float64("angle", dp.Angle, "Plane rotated faces angle (0..1)")
		interp       = flag.String("interp", "linear", "Resize interpolation: nearest, box, linear, catmullrom, lanczos")
		blur         = flag.Float64("blur", 0, "Gaussian blur sigma applied before the detection")
		selection    = flag.String("select", "first", "Face selection policy: first, largest")
		workers      = flag.Int("conc", envInt("FACEPREP_WORKERS", runtime.NumCPU()), "Number of files to process concurrently")
		metricsFile  = flag.String("metrics", "", "Write the run metrics in Prometheus text format to this file")
		progress     = flag.Bool("progress", false, "Show a progress bar instead of the per-file trace")
		noColor      = flag.Bool("nocolor", false, "Disable colored output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, helpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	utils.SetColor(isTerminal && !*noColor)

	filter, err := faceprep.ParseFilter(*interp)
	if err != nil {
		log.Fatalf(utils.DecorateText("%v", utils.ErrorMessage), err)
	}
	sel, err := parseSelection(*selection)
	if err != nil {
		log.Fatalf(utils.DecorateText("%v", utils.ErrorMessage), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := faceprep.DetectorParams{
		ScaleFactor:  *scaleFactor,
		MinNeighbors: *minNeighbors,
		MinSize:      *minSize,
		MaxSize:      *maxSize,
		ShiftFactor:  *shiftFactor,
		IoUThreshold: *iouThreshold,
		QThreshold:   *qThreshold,
		Angle:        *angle,
	}

	var spinner *utils.Spinner
	if isTerminal {
		spinner = utils.NewSpinner(os.Stderr, fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ FACEPREP", utils.StatusMessage),
			utils.DecorateText("is loading the cascade classifier...", utils.DefaultMessage),
		), time.Millisecond*100, true)
		spinner.Start()
	}
	detector, err := loadDetector(ctx, *cascade, *haar, params)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		log.Fatalf(
			utils.DecorateText("Failed to load the cascade classifier: %v", utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
	}
	if c, ok := detector.(interface{ Close() error }); ok {
		defer c.Close()
	}

	proc := faceprep.NewProcessor(detector)
	proc.Width = *width
	proc.Height = *height
	proc.Filter = filter
	proc.BlurSigma = *blur
	proc.Select = sel

	op := &faceprep.Ops{
		Src:         *source,
		Dst:         *destination,
		Workers:     *workers,
		Progress:    *progress && isTerminal,
		MetricsFile: *metricsFile,
	}

	if _, err := op.Execute(ctx, proc); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, utils.DecorateText("\nInterrupted.", utils.WarningMessage))
			os.Exit(130)
		}
		log.Fatalf(
			utils.DecorateText("\nError preprocessing the images: %s", utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
	}
}

// loadDetector builds the face detector from a local cascade file or a URL.
// An empty cascade selects the bundled pigo cascade.
// The OpenCV loader only reads local files, so a Haar cascade URL is rejected.
func loadDetector(ctx context.Context, cascade string, haar bool, params faceprep.DetectorParams) (faceprep.Detector, error) {
	if haar {
		if cascade == "" {
			return nil, errors.New("the haar detector needs a cascade file (-cc)")
		}
		if utils.IsValidUrl(cascade) {
			return nil, errors.New("the haar cascade must be a local file")
		}
		return faceprep.NewHaarDetector(cascade, params)
	}

	if cascade == "" {
		return faceprep.NewDefaultDetector(params)
	}

	var (
		data []byte
		err  error
	)
	if utils.IsValidUrl(cascade) {
		data, err = utils.Download(ctx, cascade)
	} else {
		data, err = os.ReadFile(cascade)
	}
	if err != nil {
		return nil, err
	}
	return faceprep.NewPigoDetector(data, params)
}

func parseSelection(s string) (faceprep.Selection, error) {
	switch strings.ToLower(s) {
	case "first":
		return faceprep.SelectFirst, nil
	case "largest":
		return faceprep.SelectLargest, nil
	}
	return 0, fmt.Errorf("unknown face selection policy %q", s)
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf(utils.DecorateText("[WARNING] ignoring %s=%q: %v", utils.WarningMessage), key, v, err)
		return def
	}
	return n
}
