// Package sync runs the end-to-end blackbox drain: identify the FC,
// check its flash and the Pi's disk, stream the dump to a session
// directory, verify it bit-exact, write a manifest, and conditionally
// erase the FC's flash.
package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kstaniek/bbsyncer/internal/config"
	"github.com/kstaniek/bbsyncer/internal/diskspace"
	"github.com/kstaniek/bbsyncer/internal/fcdetect"
	"github.com/kstaniek/bbsyncer/internal/led"
	"github.com/kstaniek/bbsyncer/internal/logging"
	"github.com/kstaniek/bbsyncer/internal/metrics"
	"github.com/kstaniek/bbsyncer/internal/msp"
	"github.com/kstaniek/bbsyncer/internal/session"
)

const (
	maxConsecutiveErrors = 5
	erasePollInterval    = 2 * time.Second
	readErrorBackoff     = 100 * time.Millisecond
)

// Result is the outcome of one orchestrator Run.
type Result int

const (
	ResultSuccess Result = iota
	ResultAlreadyEmpty
	ResultError
	ResultDryRun
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultAlreadyEmpty:
		return "ALREADY_EMPTY"
	case ResultError:
		return "ERROR"
	case ResultDryRun:
		return "DRY_RUN"
	default:
		return "UNKNOWN"
	}
}

// Client is the subset of *msp.Client the orchestrator drives. Tests
// substitute a fake that satisfies it without opening a real port.
type Client interface {
	fcdetect.Requester
	GetDataflashSummary() (msp.FlashSummary, error)
	SendFlashReadRequest(address uint32, size uint16, compression bool) error
	ReceiveFlashReadResponse() (addr uint32, data []byte, err error)
	EraseFlash() error
	Close() error
}

// LEDSetter is the subset of *led.Controller the orchestrator drives.
type LEDSetter interface {
	SetState(led.State)
}

// Orchestrator runs the full blackbox sync workflow against one serial
// port at a time.
type Orchestrator struct {
	config config.Config
	led    LEDSetter
	status *Status
	logger *slog.Logger
	dryRun bool

	openClient func(port string, baud int, timeout time.Duration) (Client, error)
	sleep      func(time.Duration)
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDryRun skips the erase step (and the manifest's erase fields stay
// false) while still performing the read, verify, and manifest write.
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) { o.dryRun = dryRun }
}

// WithLogger overrides the package default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStatus overrides the Orchestrator's Status handle, letting a
// caller share one Status between the orchestrator and a web server.
func WithStatus(s *Status) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.status = s
		}
	}
}

// WithClientFactory overrides how Run opens a Client for a port name.
// Tests use this to inject a fake Client instead of a real serial port.
func WithClientFactory(f func(port string, baud int, timeout time.Duration) (Client, error)) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.openClient = f
		}
	}
}

// New returns an Orchestrator for cfg, driving the given LED controller.
func New(cfg config.Config, ledCtl LEDSetter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config: cfg,
		led:    ledCtl,
		status: NewStatus(),
		logger: logging.L(),
		openClient: func(port string, baud int, timeout time.Duration) (Client, error) {
			p, err := msp.OpenPort(port, baud, 200*time.Millisecond)
			if err != nil {
				return nil, err
			}
			c := msp.NewClient(p)
			c.SetResponseTimeout(timeout)
			return c, nil
		},
		sleep: time.Sleep,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns the orchestrator's progress handle, for a web server to
// poll concurrently with Run.
func (o *Orchestrator) Status() *Status { return o.status }

// Run drives the full ten-step workflow against the named serial port.
// Any panic-worthy internal error is caught and reported as ResultError
// rather than propagated, since this runs unattended with no operator to
// see a crash.
func (o *Orchestrator) Run(port string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("unexpected panic during sync", "recover", r)
			o.led.SetState(led.ErrorGeneral)
			o.status.set("error", 0)
			result = ResultError
		}
		metrics.IncSyncResult(result.String())
	}()
	return o.run(port)
}

func (o *Orchestrator) run(port string) Result {
	cfg := o.config

	timeout := time.Duration(cfg.SerialTimeout * float64(time.Second))
	client, err := o.openClient(port, cfg.SerialBaud, timeout)
	if err != nil {
		o.logger.Error("failed to open serial port", "port", port, "error", err)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	defer client.Close()

	// Step 2: identify FC.
	o.logger.Info("identifying FC", "port", port)
	o.status.set("identifying", 0)
	fc, err := fcdetect.Detect(client)
	if err != nil {
		o.logger.Error("FC detection failed", "error", err)
		metrics.IncError(metrics.ErrDetection)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	o.logger.Info("FC identified", "variant", fc.Variant, "uid", fc.UID)

	// Step 3: query flash state.
	o.logger.Info("querying flash state")
	o.status.set("querying", 0)
	summary, err := client.GetDataflashSummary()
	if err != nil {
		o.logger.Error("failed to get flash summary", "error", err)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	o.logger.Info("flash summary",
		"supported", summary.Supported(), "ready", summary.Ready(),
		"used", summary.UsedSize, "total", summary.TotalSize)

	if !summary.Supported() {
		o.logger.Error("FC flash not supported")
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	if !summary.Ready() {
		o.logger.Error("FC flash not ready (may be busy)")
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}

	usedSize := summary.UsedSize
	if usedSize == 0 {
		o.logger.Info("flash is empty, nothing to sync")
		o.led.SetState(led.AlreadyEmpty)
		o.status.set("idle", 0)
		return ResultAlreadyEmpty
	}

	// Step 4: check Pi storage.
	o.logger.Info("checking storage")
	if err := ensureDir(cfg.StoragePath); err != nil {
		o.logger.Error("failed to create storage path", "error", err)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	requiredMB := float64(usedSize)/(1024*1024) + float64(cfg.MinFreeSpaceMB)
	availableMB, err := diskspace.FreeMB(cfg.StoragePath)
	if err != nil {
		o.logger.Error("failed to read free disk space", "error", err)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	o.logger.Info("storage", "required_mb", requiredMB, "available_mb", availableMB)
	if availableMB < requiredMB {
		o.logger.Error("insufficient storage",
			"available_mb", availableMB, "required_mb", requiredMB)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}

	// Step 5: prepare output.
	o.logger.Info("preparing output directory")
	sessionDir, err := session.MakeSessionDir(cfg.StoragePath, fc, o.now())
	if err != nil {
		o.logger.Error("failed to create session directory", "error", err)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	bblPath := filepath.Join(sessionDir, session.RawFlashFilename)
	writer := session.NewStreamWriter(bblPath)
	if err := writer.Open(); err != nil {
		o.logger.Error("failed to open flash dump file", "error", err)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}

	// Step 6: stream flash read.
	o.logger.Info("reading flash", "bytes", usedSize, "path", bblPath)
	o.led.SetState(led.Syncing)
	o.status.set("syncing", 0)

	if err := o.streamFlash(client, writer, usedSize); err != nil {
		o.logger.Error("flash read failed", "error", err)
		writer.Abort()
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	if err := writer.Close(); err != nil {
		o.logger.Error("failed to finalize flash dump file", "error", err)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	o.logger.Info("flash read complete", "bytes", writer.BytesWritten())

	// Step 7: verify integrity.
	o.logger.Info("verifying integrity")
	o.led.SetState(led.Verifying)
	o.status.set("verifying", 0)

	if writer.BytesWritten() != int64(usedSize) {
		o.logger.Error("size mismatch",
			"wrote", writer.BytesWritten(), "expected", usedSize)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	match, diskSHA, err := writer.VerifyAgainstFile()
	if err != nil {
		o.logger.Error("failed to verify flash dump file", "error", err)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	if !match {
		o.logger.Error("SHA-256 verification failed, will not erase FC flash")
		metrics.IncError(metrics.ErrVerify)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	o.logger.Info("integrity OK", "sha256", diskSHA)

	// Step 8: write manifest.
	o.logger.Info("writing manifest")
	if err := session.WriteManifest(sessionDir, fc, diskSHA, int64(usedSize), false, false, o.now()); err != nil {
		o.logger.Error("failed to write manifest", "error", err)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}

	if o.dryRun {
		o.logger.Info("dry run, skipping erase")
		metrics.IncEraseOutcome("skipped")
		o.led.SetState(led.Success)
		o.status.set("idle", 0)
		return ResultDryRun
	}
	if !cfg.EraseAfterSync {
		o.logger.Info("erase_after_sync=false, skipping erase")
		metrics.IncEraseOutcome("skipped")
		o.led.SetState(led.Success)
		o.status.set("idle", 0)
		return ResultSuccess
	}

	// Step 9: erase FC flash.
	o.logger.Info("erasing FC flash")
	o.led.SetState(led.Erasing)
	o.status.set("erasing", 0)

	eraseOK := o.waitForErase(client)
	if uerr := session.UpdateManifestErase(sessionDir, eraseOK); uerr != nil {
		o.logger.Warn("failed to update manifest with erase result", "error", uerr)
	}
	if !eraseOK {
		o.logger.Error("flash erase did not complete within timeout")
		metrics.IncEraseOutcome("timeout")
		metrics.IncError(metrics.ErrErase)
		o.led.SetState(led.ErrorGeneral)
		o.status.set("error", 0)
		return ResultError
	}
	metrics.IncEraseOutcome("completed")
	o.logger.Info("flash erase confirmed")

	// Step 10: signal result.
	o.logger.Info("sync complete")
	o.led.SetState(led.Success)
	o.status.set("idle", 0)
	return ResultSuccess
}

// streamFlash drives the one-deep-pipelined DATAFLASH_READ loop: the
// next chunk is requested before the current one is written, so the FC's
// reply for chunk N+1 is in flight while chunk N hits disk.
func (o *Orchestrator) streamFlash(client Client, writer *session.StreamWriter, usedSize uint32) error {
	cfg := o.config
	var address uint32
	consecutiveErrors := 0

	chunkSizeAt := func(addr uint32) uint16 {
		remaining := usedSize - addr
		size := cfg.FlashChunkSize
		if size > int(remaining) {
			size = int(remaining)
		}
		if size > 0xFFFF {
			size = 0xFFFF
		}
		return uint16(size)
	}

	if err := client.SendFlashReadRequest(address, chunkSizeAt(address), cfg.FlashReadCompression); err != nil {
		return fmt.Errorf("send initial flash read request: %w", err)
	}

	for address < usedSize {
		chunkAddr, data, err := client.ReceiveFlashReadResponse()
		if err != nil {
			consecutiveErrors++
			metrics.IncFlashRetry()
			o.logger.Warn("flash read error", "address", address,
				"attempt", consecutiveErrors, "max", maxConsecutiveErrors, "error", err)
			if consecutiveErrors >= maxConsecutiveErrors {
				return fmt.Errorf("too many consecutive read errors: %w", err)
			}
			o.sleep(readErrorBackoff)
			if rerr := client.SendFlashReadRequest(address, chunkSizeAt(address), cfg.FlashReadCompression); rerr != nil {
				return fmt.Errorf("resend flash read request: %w", rerr)
			}
			continue
		}

		if chunkAddr != address {
			consecutiveErrors++
			metrics.IncFlashRetry()
			o.logger.Warn("flash read address mismatch",
				"expected", address, "got", chunkAddr, "attempt", consecutiveErrors)
			if consecutiveErrors >= maxConsecutiveErrors {
				return errors.New("too many address mismatches")
			}
			if rerr := client.SendFlashReadRequest(address, chunkSizeAt(address), cfg.FlashReadCompression); rerr != nil {
				return fmt.Errorf("resend flash read request: %w", rerr)
			}
			continue
		}

		if len(data) == 0 {
			o.logger.Info("FC returned 0 bytes, end of data", "address", address)
			break
		}
		consecutiveErrors = 0

		nextAddress := address + uint32(len(data))
		if nextAddress < usedSize {
			if err := client.SendFlashReadRequest(nextAddress, chunkSizeAt(nextAddress), cfg.FlashReadCompression); err != nil {
				return fmt.Errorf("send next flash read request: %w", err)
			}
		}

		if err := writer.Write(data); err != nil {
			return fmt.Errorf("write flash chunk: %w", err)
		}
		metrics.AddFlashBytes(len(data))
		address = nextAddress

		progress := int(uint64(address) * 100 / uint64(usedSize))
		o.status.set("syncing", progress)
	}
	return nil
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (o *Orchestrator) waitForErase(client Client) bool {
	if err := client.EraseFlash(); err != nil {
		o.logger.Warn("failed to send erase command", "error", err)
	}
	deadline := o.now().Add(time.Duration(o.config.EraseTimeoutSec) * time.Second)
	for o.now().Before(deadline) {
		o.sleep(erasePollInterval)
		summary, err := client.GetDataflashSummary()
		if err != nil {
			o.logger.Warn("error polling flash summary during erase", "error", err)
			continue
		}
		o.logger.Debug("erase poll", "used", summary.UsedSize, "ready", summary.Ready())
		if summary.UsedSize == 0 && summary.Ready() {
			return true
		}
	}
	return false
}
