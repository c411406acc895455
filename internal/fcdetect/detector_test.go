package fcdetect

import (
	"errors"
	"testing"

	"github.com/kstaniek/bbsyncer/internal/msp"
)

type fakeClient struct {
	apiMajor, apiMinor int
	apiErr             error
	variant            string
	variantErr         error
	uid                string
	uidErr             error
	blackbox           byte
	blackboxErr        error
}

func (f *fakeClient) GetAPIVersion() (int, int, error) { return f.apiMajor, f.apiMinor, f.apiErr }
func (f *fakeClient) GetFCVariant() (string, error)    { return f.variant, f.variantErr }
func (f *fakeClient) GetUID() (string, error)          { return f.uid, f.uidErr }
func (f *fakeClient) GetBlackboxConfig() (byte, error) { return f.blackbox, f.blackboxErr }

func okClient() *fakeClient {
	return &fakeClient{
		apiMajor: 1, apiMinor: 45,
		variant:  msp.BTFLVariant,
		uid:      "0102030405060708090a0b0c",
		blackbox: msp.BlackboxDeviceNone,
	}
}

func TestDetect_HappyPath(t *testing.T) {
	info, err := Detect(okClient())
	if err != nil {
		t.Fatalf("Detect error = %v", err)
	}
	if info.Variant != msp.BTFLVariant || info.UID != "0102030405060708090a0b0c" {
		t.Errorf("info = %+v", info)
	}
}

func TestDetect_NotBetaflight(t *testing.T) {
	c := okClient()
	c.variant = "INAV"
	_, err := Detect(c)
	if !errors.Is(err, ErrNotBetaflight) {
		t.Errorf("err = %v, want ErrNotBetaflight", err)
	}
}

func TestDetect_SDCardBlackbox(t *testing.T) {
	c := okClient()
	c.blackbox = msp.BlackboxDeviceSDCard
	_, err := Detect(c)
	if !errors.Is(err, ErrSDCardBlackbox) {
		t.Errorf("err = %v, want ErrSDCardBlackbox", err)
	}
}

func TestDetect_UIDFailureDegradesNotFails(t *testing.T) {
	c := okClient()
	c.uidErr = errors.New("boom")
	info, err := Detect(c)
	if err != nil {
		t.Fatalf("Detect error = %v, want nil (UID failure should degrade)", err)
	}
	if info.UID != "unknown" {
		t.Errorf("UID = %q, want \"unknown\"", info.UID)
	}
}

func TestDetect_BlackboxConfigFailureDegradesNotFails(t *testing.T) {
	c := okClient()
	c.blackboxErr = errors.New("boom")
	info, err := Detect(c)
	if err != nil {
		t.Fatalf("Detect error = %v, want nil", err)
	}
	if info.BlackboxDevice != msp.BlackboxDeviceNone {
		t.Errorf("BlackboxDevice = %d, want default 0", info.BlackboxDevice)
	}
}

func TestDetect_APIVersionFailureIsHard(t *testing.T) {
	c := okClient()
	c.apiErr = errors.New("boom")
	_, err := Detect(c)
	if !errors.Is(err, ErrDetection) {
		t.Errorf("err = %v, want ErrDetection", err)
	}
}

func TestDetect_VariantFailureIsHard(t *testing.T) {
	c := okClient()
	c.variantErr = errors.New("boom")
	_, err := Detect(c)
	if !errors.Is(err, ErrDetection) {
		t.Errorf("err = %v, want ErrDetection", err)
	}
}
