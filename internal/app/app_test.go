package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dokzlo13/gammatool/internal/colord"
	"github.com/dokzlo13/gammatool/internal/config"
	"github.com/dokzlo13/gammatool/internal/controller"
)

type stubProfile struct {
	filename string
}

func (p *stubProfile) Connect(ctx context.Context) error { return nil }
func (p *stubProfile) ID() string                        { return "icc-stub" }
func (p *stubProfile) Filename() string                  { return p.filename }

func (p *stubProfile) ReadData(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("no data")
}

type stubDevice struct {
	id        string
	processed bool
}

func (d *stubDevice) ID() string { return d.id }

func (d *stubDevice) Profiles(ctx context.Context) ([]colord.Profile, error) {
	d.processed = true
	return []colord.Profile{&stubProfile{filename: "/usr/share/color/icc/sRGB.icc"}}, nil
}

func (d *stubDevice) AddProfile(ctx context.Context, relation string, p colord.Profile) error {
	return nil
}
func (d *stubDevice) MakeProfileDefault(ctx context.Context, p colord.Profile) error { return nil }
func (d *stubDevice) RemoveProfile(ctx context.Context, p colord.Profile) error      { return nil }

type stubClient struct {
	connectErr error
	devices    []colord.Device
	devicesErr error
}

func (c *stubClient) Connect(ctx context.Context) error { return c.connectErr }
func (c *stubClient) Close() error                      { return nil }

func (c *stubClient) DisplayDevices(ctx context.Context) ([]colord.Device, error) {
	return c.devices, c.devicesErr
}

func (c *stubClient) FindProfileByFilename(ctx context.Context, path string) (colord.Profile, error) {
	return nil, fmt.Errorf("not found")
}

func newTestApp(t *testing.T, client colord.Client) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Profiles.Dir = t.TempDir()
	a, err := NewWithClient(cfg, client)
	if err != nil {
		t.Fatalf("NewWithClient error: %v", err)
	}
	var out bytes.Buffer
	a.out = &out
	return a, &out
}

func TestRunConnectFailureIsFatal(t *testing.T) {
	a, _ := newTestApp(t, &stubClient{connectErr: fmt.Errorf("no bus")})
	err := a.Run(context.Background(), controller.Request{Mode: controller.ModeInfo}, -1)
	if err == nil || !strings.Contains(err.Error(), "failed to connect") {
		t.Errorf("Run error = %v, want connect failure", err)
	}
}

func TestRunEnumerationFailureIsFatal(t *testing.T) {
	a, _ := newTestApp(t, &stubClient{devicesErr: fmt.Errorf("bus dropped")})
	err := a.Run(context.Background(), controller.Request{Mode: controller.ModeInfo}, -1)
	if err == nil || !strings.Contains(err.Error(), "failed to get devices") {
		t.Errorf("Run error = %v, want enumeration failure", err)
	}
}

func TestRunNoDevices(t *testing.T) {
	a, out := newTestApp(t, &stubClient{})
	if err := a.Run(context.Background(), controller.Request{Mode: controller.ModeInfo}, -1); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !strings.Contains(out.String(), "No display devices found.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunDeviceIndexOutOfRange(t *testing.T) {
	devices := []colord.Device{&stubDevice{id: "a"}, &stubDevice{id: "b"}}
	a, _ := newTestApp(t, &stubClient{devices: devices})
	err := a.Run(context.Background(), controller.Request{Mode: controller.ModeInfo}, 2)
	if err == nil || !strings.Contains(err.Error(), "invalid device index") {
		t.Errorf("Run error = %v, want index error", err)
	}
}

func TestRunDeviceIndexSelectsOne(t *testing.T) {
	first := &stubDevice{id: "a"}
	second := &stubDevice{id: "b"}
	a, _ := newTestApp(t, &stubClient{devices: []colord.Device{first, second}})

	if err := a.Run(context.Background(), controller.Request{Mode: controller.ModeInfo}, 1); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if first.processed {
		t.Error("device 0 processed despite -d 1")
	}
	if !second.processed {
		t.Error("device 1 not processed")
	}
}

func TestRunAllDevices(t *testing.T) {
	first := &stubDevice{id: "a"}
	second := &stubDevice{id: "b"}
	a, _ := newTestApp(t, &stubClient{devices: []colord.Device{first, second}})

	if err := a.Run(context.Background(), controller.Request{Mode: controller.ModeInfo}, -1); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !first.processed || !second.processed {
		t.Error("not all devices processed in all-devices mode")
	}
}
