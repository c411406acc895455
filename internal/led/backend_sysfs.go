package led

import "os"

const (
	sysfsLEDDir     = "/sys/class/leds/led0"
	sysfsBrightness = sysfsLEDDir + "/brightness"
	sysfsTrigger    = sysfsLEDDir + "/trigger"
)

// SysfsBackend drives the Pi's built-in ACT LED through its sysfs
// brightness file. No extra hardware required.
type SysfsBackend struct{}

// NewSysfsBackend disables the kernel's default trigger (e.g. mmc0
// activity) on the ACT LED so SetRaw has exclusive control, matching the
// original's start-up step of writing "none" to the trigger file.
func NewSysfsBackend() *SysfsBackend {
	writeSysfs(sysfsTrigger, "none")
	return &SysfsBackend{}
}

// SetRaw writes 1 or 0 to the brightness file. Failures are swallowed —
// the LED is best-effort.
func (b *SysfsBackend) SetRaw(on bool) error {
	value := "0"
	if on {
		value = "1"
	}
	writeSysfs(sysfsBrightness, value)
	return nil
}

// Close restores the mmc0 trigger so the LED resumes showing SD-card
// activity once bbsyncer exits.
func (b *SysfsBackend) Close() error {
	writeSysfs(sysfsTrigger, "mmc0")
	return nil
}

func writeSysfs(path, value string) {
	_ = os.WriteFile(path, []byte(value), 0o644)
}
