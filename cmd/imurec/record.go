package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/imurec/internal/devicemodel"
	"github.com/srg/imurec/internal/export"
	"github.com/srg/imurec/internal/groutine"
	"github.com/srg/imurec/internal/imu"
	"github.com/srg/imurec/internal/recording"
	"github.com/srg/imurec/internal/ringchan"
	"github.com/srg/imurec/pkg/config"
)

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a labeled gesture",
	Long: `Records IMU samples from one or more devices and saves them as a gesture file.

Sources:
  --devices N      N simulated wearables streaming in real time
  --input FILE     replay a binary frame capture ("-" for stdin)

The recording stops when --duration elapses, the capture is exhausted, or on Ctrl+C.

Examples:
  # Record 5 seconds from two simulated devices
  imurec record --label wave --devices 2 --duration 5s

  # Replay a capture and also save the preprocessed file
  imurec record --label punch --input punch.bin --preprocessed`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

var (
	recordLabel        string
	recordNote         string
	recordDuration     time.Duration
	recordDevices      int
	recordInput        string
	recordMarkEvery    time.Duration
	recordPreprocessed bool
	recordOutDir       string
	recordRateHz       int
	recordQuiet        bool
)

func init() {
	recordCmd.Flags().StringVar(&recordLabel, "label", recording.DefaultLabel, "Gesture class label")
	recordCmd.Flags().StringVar(&recordNote, "note", "", "Free-text note stored with the recording")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 10*time.Second, "Recording length (0 = until Ctrl+C or end of input)")
	recordCmd.Flags().IntVar(&recordDevices, "devices", 0, "Number of simulated devices")
	recordCmd.Flags().StringVar(&recordInput, "input", "", "Binary frame capture to replay (- for stdin)")
	recordCmd.Flags().DurationVar(&recordMarkEvery, "mark", 0, "Add a marked timestamp at this interval (0 = none)")
	recordCmd.Flags().BoolVar(&recordPreprocessed, "preprocessed", false, "Also write the preprocessed recording")
	recordCmd.Flags().StringVar(&recordOutDir, "out", "", "Recordings directory (default <home>/GSD_Recordings)")
	recordCmd.Flags().IntVar(&recordRateHz, "rate", 0, "Simulated sample rate in Hz (default from config)")
	recordCmd.Flags().BoolVarP(&recordQuiet, "quiet", "q", false, "Do not print live data rates")
}

// deviceSample tags a sample with the device it came from.
type deviceSample struct {
	mac    string
	sample imu.Sample
}

const captureDeviceMac = "capture"

func runRecord(cmd *cobra.Command, args []string) error {
	if recordDevices <= 0 && recordInput == "" {
		return ErrNoSource
	}
	if recordDevices > 0 && recordInput != "" {
		return fmt.Errorf("--devices and --input are mutually exclusive")
	}

	cfg, logger, err := setupCommand(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	outDir, err := resolveOutDir(recordOutDir, cfg)
	if err != nil {
		return err
	}
	exporter := export.New(outDir, cfg.MaxNameProbes, logger)

	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	writePreprocessed := recordPreprocessed || cfg.WritePreprocessed

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	if recordDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, recordDuration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	errOut := cmd.ErrOrStderr()
	models := hashmap.New[string, *devicemodel.DeviceViewModel]()
	newModel := func(info devicemodel.DeviceInfo) *devicemodel.DeviceViewModel {
		opts := []devicemodel.Option{
			devicemodel.WithWindowSizes(cfg.SampleWindowSize, cfg.RateWindowSize),
			devicemodel.WithStatsQueueSize(cfg.StatsQueueSize),
		}
		if !recordQuiet {
			opts = append(opts, devicemodel.WithStatsObserver(func(s devicemodel.RateStats) {
				fmt.Fprintf(errOut, "[%s] %s\n", info.Mac, s)
			}))
		}
		vm := devicemodel.New(info, logger, opts...)
		models.Set(info.Mac, vm)
		return vm
	}

	session := recording.NewSession(recordLabel, recordNote, deviceID, nil, logger)
	queue := ringchan.New[deviceSample](cfg.SampleQueueSize)
	var producers sync.WaitGroup

	if recordInput != "" {
		input, closeInput, err := openCapture(cmd, recordInput)
		if err != nil {
			return err
		}
		defer closeInput()

		vm := newModel(devicemodel.DeviceInfo{Mac: captureDeviceMac, Name: recordInput, Drift: "0"})
		if err := session.Track(vm); err != nil {
			return err
		}
		groutine.GoTracked(ctx, &producers, "capture-replay", func(ctx context.Context) {
			defer cancel() // input exhausted ends the recording
			replayCapture(ctx, input, queue, logger)
		})
	} else {
		rate := recordRateHz
		if rate <= 0 {
			rate = cfg.SimulateRateHz
		}
		for i := 0; i < recordDevices; i++ {
			info := devicemodel.DeviceInfo{
				Mac:   fmt.Sprintf("SI:MU:LA:TE:00:%02X", i+1),
				Name:  fmt.Sprintf("simulated-%d", i+1),
				Drift: "0",
			}
			vm := newModel(info)
			vm.ReadMtu(247)
			vm.ReadConnectionSpeed(12, 0, 500)
			vm.ReadImuConfig(imu.Config{AccelRange: 16, GyroRange: 2000, SampleRateHz: rate})
			if err := session.Track(vm); err != nil {
				return err
			}

			sim := imu.NewSimulator(rate, int64(i+1))
			groutine.GoTracked(ctx, &producers, "simulator:"+info.Mac, func(ctx context.Context) {
				sim.Run(ctx, func(s imu.Sample) {
					if queue.Send(deviceSample{mac: info.Mac, sample: s}) {
						logger.WithField("device", info.Mac).Debug("Sample queue full, oldest sample dropped")
					}
				})
			})
		}
	}

	fmt.Fprintf(errOut, "Recording %q (%d device(s)). Press Ctrl+C to stop...\n", session.Label(), models.Len())

	dispatch := func(ds deviceSample) {
		if vm, ok := models.Get(ds.mac); ok {
			vm.ReadImuData(ds.sample)
		}
	}
	consumeSamples(ctx, queue, dispatch, session, recordMarkEvery, logger)

	producers.Wait()
	drainQueue(queue, dispatch)

	models.Range(func(_ string, vm *devicemodel.DeviceViewModel) bool {
		vm.AfterDisconnect()
		return true
	})
	gesture, stopErr := session.Stop()
	models.Range(func(_ string, vm *devicemodel.DeviceViewModel) bool {
		vm.Close()
		return true
	})
	if stopErr != nil {
		return stopErr
	}

	return saveRecording(cmd.OutOrStdout(), exporter, gesture, writePreprocessed)
}

// consumeSamples feeds queued samples into their device models until ctx ends.
func consumeSamples(ctx context.Context, queue *ringchan.RingChannel[deviceSample], dispatch func(deviceSample),
	session *recording.Session, markEvery time.Duration, logger *logrus.Logger) {
	var marks <-chan time.Time
	if markEvery > 0 {
		ticker := time.NewTicker(markEvery)
		defer ticker.Stop()
		marks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ds := <-queue.C():
			dispatch(ds)
		case <-marks:
			if ts, err := session.Mark(); err == nil {
				logger.WithField("timestamp", ts).Debug("Timestamp marked")
			}
		}
	}
}

func drainQueue(queue *ringchan.RingChannel[deviceSample], dispatch func(deviceSample)) {
	for {
		select {
		case ds := <-queue.C():
			dispatch(ds)
		default:
			return
		}
	}
}

// replayCapture decodes frames from r and queues them without dropping any:
// a replay is faster than real time, so it waits for room instead of overwriting.
func replayCapture(ctx context.Context, r io.Reader, queue *ringchan.RingChannel[deviceSample], logger *logrus.Logger) {
	decoder := imu.NewStreamDecoder(0, logger)
	frames := 0
	err := decoder.ReadFrom(r, func(s imu.Sample) {
		ds := deviceSample{mac: captureDeviceMac, sample: s}
		for !queue.TrySend(ds) {
			if ctx.Err() != nil {
				return
			}
			runtime.Gosched()
		}
		frames++
	})
	if err != nil {
		logger.WithError(err).Error("Capture replay failed")
	}
	logger.WithFields(logrus.Fields{
		"frames":  frames,
		"skipped": decoder.Skipped(),
	}).Info("Capture replay finished")
}

func openCapture(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func resolveOutDir(flagDir string, cfg *config.Config) (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}
	if cfg.RecordingsDir != "" {
		return cfg.RecordingsDir, nil
	}
	return export.DefaultDir()
}

// saveRecording exports the raw and, optionally, preprocessed files in the
// background and reports where they went.
func saveRecording(out io.Writer, exporter *export.Exporter, g *recording.GestureData, preprocessed bool) error {
	results := []<-chan error{exporter.WriteGesture(g)}
	if preprocessed {
		results = append(results, exporter.WritePreprocessed(recording.Preprocess(g)))
	}

	var firstErr error
	for _, ch := range results {
		if err := <-ch; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	exporter.Wait()
	if firstErr != nil {
		return fmt.Errorf("save recording: %w", firstErr)
	}

	samples := 0
	for _, d := range g.Datas {
		acc, gyro := d.Counts()
		samples += acc + gyro
	}
	fmt.Fprintf(out, "Saved %q: %d device(s), %d reading(s), %d mark(s) to %s\n",
		g.Label, len(g.Datas), samples, len(g.MarkedTimeStamps), exporter.Dir())
	return nil
}
