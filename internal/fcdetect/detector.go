// Package fcdetect runs the MSP handshake that identifies a connected
// flight controller and confirms it's one bbsyncer knows how to drain.
package fcdetect

import (
	"errors"
	"fmt"

	"github.com/kstaniek/bbsyncer/internal/msp"
)

// Sentinel errors classifying why detection failed.
var (
	// ErrNotBetaflight is a hard error: the FC reports a variant other
	// than BTFL.
	ErrNotBetaflight = errors.New("fcdetect: FC variant is not Betaflight")

	// ErrSDCardBlackbox is a hard error: the FC logs to an SD card, which
	// must be pulled and read directly rather than drained over MSP.
	ErrSDCardBlackbox = errors.New("fcdetect: FC blackbox device is an SD card")

	// ErrDetection wraps any other MSP failure during the handshake.
	ErrDetection = errors.New("fcdetect: detection failed")
)

// Info is everything learned about the FC during detection.
type Info struct {
	APIMajor       int
	APIMinor       int
	Variant        string
	UID            string
	BlackboxDevice byte
}

// Requester is the subset of *msp.Client detection needs to talk to.
type Requester interface {
	GetAPIVersion() (major, minor int, err error)
	GetFCVariant() (string, error)
	GetUID() (string, error)
	GetBlackboxConfig() (device byte, err error)
}

// Detect runs api_version -> fc_variant -> uid -> blackbox_config against
// an already-open client. A non-Betaflight variant or an SD-card blackbox
// device is a hard error; a failed UID or blackbox-config read degrades
// to a default value instead of failing detection.
func Detect(c Requester) (Info, error) {
	major, minor, err := c.GetAPIVersion()
	if err != nil {
		return Info{}, fmt.Errorf("%w: API_VERSION: %v", ErrDetection, err)
	}

	variant, err := c.GetFCVariant()
	if err != nil {
		return Info{}, fmt.Errorf("%w: FC_VARIANT: %v", ErrDetection, err)
	}
	if variant != msp.BTFLVariant {
		return Info{}, fmt.Errorf("%w: got %q", ErrNotBetaflight, variant)
	}

	uid := "unknown"
	if v, err := c.GetUID(); err == nil {
		uid = v
	}

	var blackboxDevice byte = msp.BlackboxDeviceNone
	if device, err := c.GetBlackboxConfig(); err == nil {
		blackboxDevice = device
	}

	if blackboxDevice == msp.BlackboxDeviceSDCard {
		return Info{}, fmt.Errorf("%w: remove the FC SD card and read it directly", ErrSDCardBlackbox)
	}

	return Info{
		APIMajor:       major,
		APIMinor:       minor,
		Variant:        variant,
		UID:            uid,
		BlackboxDevice: blackboxDevice,
	}, nil
}
