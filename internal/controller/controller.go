// Package controller drives the profile lifecycle for each display device:
// inspecting, removing, or replacing the tool-owned gamma profile through the
// color-management service.
package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/gammatool/internal/colord"
	"github.com/dokzlo13/gammatool/internal/icc"
	"github.com/dokzlo13/gammatool/internal/ledger"
	"github.com/dokzlo13/gammatool/internal/profile"
	"github.com/dokzlo13/gammatool/internal/ramp"
)

// Mode selects the operation performed per device. Modes are mutually
// exclusive within one invocation.
type Mode int

const (
	ModeApply Mode = iota
	ModeInfo
	ModeRemove
)

// Request is the parsed, immutable per-invocation input.
type Request struct {
	Mode        Mode
	Gamma       ramp.Spec
	Temperature int
}

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	// ICCDir is where new profiles are persisted. Created if absent.
	ICCDir string
	// ReferenceProfile is the filename of the standard profile assigned to
	// devices that have none (default "sRGB.icc").
	ReferenceProfile string
	// Timeout bounds the registration wait (default 4s).
	Timeout time.Duration
	// PollInterval is the sleep between registration polls (default 10ms).
	PollInterval time.Duration
	// RateLimitRPS limits service calls across a multi-device run
	// (default 10).
	RateLimitRPS float64
	// Ledger, when non-nil, records apply/remove outcomes.
	Ledger *ledger.Ledger
	// Out receives user-facing reports (default os.Stdout).
	Out io.Writer
}

// Controller orchestrates per-device profile operations.
type Controller struct {
	client  colord.Client
	ledger  *ledger.Ledger
	limiter *rate.Limiter
	out     io.Writer

	iccDir       string
	refProfile   string
	timeout      time.Duration
	pollInterval time.Duration

	// Injection points for the registration wait, so the bounded poll is
	// testable without a live service or real sleeps.
	detect func(ctx context.Context, path string) (colord.Profile, error)
	sleep  func(d time.Duration)
	now    func() time.Time
}

// New creates a controller bound to a service client.
func New(client colord.Client, opts Options) *Controller {
	if opts.ReferenceProfile == "" {
		opts.ReferenceProfile = "sRGB.icc"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 4 * time.Second
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	if opts.RateLimitRPS == 0 {
		opts.RateLimitRPS = 10.0
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	return &Controller{
		client:       client,
		ledger:       opts.Ledger,
		limiter:      rate.NewLimiter(rate.Limit(opts.RateLimitRPS), int(opts.RateLimitRPS)),
		out:          opts.Out,
		iccDir:       opts.ICCDir,
		refProfile:   opts.ReferenceProfile,
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
		detect:       client.FindProfileByFilename,
		sleep:        time.Sleep,
		now:          time.Now,
	}
}

// Run processes every device in order, to completion, one at a time. Failures
// on one device are logged and never block the remaining devices.
func (c *Controller) Run(ctx context.Context, devices []colord.Device, req Request) {
	for _, dev := range devices {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		if err := c.ProcessDevice(ctx, dev, req); err != nil {
			log.Warn().Str("device", dev.ID()).Err(err).Msg("Skipping device")
		}
	}
}

// ProcessDevice resolves the device's base profile and dispatches to the
// requested mode.
func (c *Controller) ProcessDevice(ctx context.Context, dev colord.Device, req Request) error {
	fmt.Fprintf(c.out, "\ndevice: %s\n", dev.ID())

	profiles, err := dev.Profiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	var base colord.Profile
	if len(profiles) > 0 {
		base = profiles[0]
	} else {
		fmt.Fprintln(c.out, "No default profile, using sRGB")
		base, err = c.assignReferenceProfile(ctx, dev)
		if err != nil {
			return fmt.Errorf("could not set reference profile: %w", err)
		}
	}

	if err := base.Connect(ctx); err != nil {
		return fmt.Errorf("could not connect to base profile: %w", err)
	}

	switch req.Mode {
	case ModeInfo:
		return c.handleInfo(dev, base)
	case ModeRemove:
		return c.handleRemove(ctx, dev, base)
	default:
		return c.handleApply(ctx, dev, base, req)
	}
}

// assignReferenceProfile locates the standard reference profile and makes it
// the device's default, so there is always a base to derive from.
func (c *Controller) assignReferenceProfile(ctx context.Context, dev colord.Device) (colord.Profile, error) {
	ref, err := c.client.FindProfileByFilename(ctx, c.refProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", c.refProfile, err)
	}
	if err := ref.Connect(ctx); err != nil {
		return nil, err
	}
	if err := dev.AddProfile(ctx, colord.RelationHard, ref); err != nil {
		return nil, err
	}
	if err := dev.MakeProfileDefault(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (c *Controller) handleInfo(dev colord.Device, base colord.Profile) error {
	name := base.Filename()
	if name == "" {
		fmt.Fprintln(c.out, "Current profile has no filename.")
		return nil
	}

	id, own := profile.Decode(filepath.Base(name))
	switch own {
	case profile.Owned:
		r, g, b := id.Gamma()
		fmt.Fprintf(c.out, "gamma: %.2f:%.2f:%.2f\n", r, g, b)
		fmt.Fprintf(c.out, "temperature: %d\n", id.Temperature)
	case profile.Unparseable:
		fmt.Fprintf(c.out, "Could not parse parameters from profile name: %s\n", filepath.Base(name))
	default:
		fmt.Fprintf(c.out, "Current profile is not a gamma-tool profile: %s\n", name)
	}

	if c.ledger != nil {
		rec, err := c.ledger.LastApply(dev.ID())
		if err != nil {
			log.Warn().Err(err).Msg("Could not query operation ledger")
		} else if rec != nil {
			fmt.Fprintf(c.out, "last applied: g=%s t=%d at %s\n",
				rec.Gamma, rec.Temperature, rec.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

func (c *Controller) handleRemove(ctx context.Context, dev colord.Device, base colord.Profile) error {
	name := base.Filename()
	fmt.Fprintf(c.out, "Current profile is %s\n", profileLabel(base))

	if !isToolOwned(name) {
		fmt.Fprintln(c.out, "Current profile was not created by this tool. Not removing.")
		return nil
	}

	fmt.Fprintln(c.out, "Removing profile from device...")
	if err := dev.RemoveProfile(ctx, base); err != nil {
		c.record(dev, ledger.Record{Operation: ledger.OpRemove, ProfilePath: name, Outcome: "detach failed"})
		return fmt.Errorf("could not remove profile from device: %w", err)
	}

	fmt.Fprintf(c.out, "Deleting file %s\n", name)
	if err := os.Remove(name); err != nil {
		log.Warn().Str("path", name).Err(err).Msg("Could not delete profile file")
	}
	c.record(dev, ledger.Record{Operation: ledger.OpRemove, ProfilePath: name, Outcome: "ok"})
	return nil
}

func (c *Controller) handleApply(ctx context.Context, dev colord.Device, base colord.Profile, req Request) error {
	baseName := base.Filename()
	fmt.Fprintf(c.out, "Current profile is %s\n", profileLabel(base))
	baseOwned := isToolOwned(baseName)

	// Build the new profile from the base's data.
	data, err := base.ReadData(ctx)
	if err != nil {
		return fmt.Errorf("could not load ICC data from base profile: %w", err)
	}
	doc, err := icc.Parse(data)
	if err != nil {
		return fmt.Errorf("could not parse base profile: %w", err)
	}

	doc.SetDescription(fmt.Sprintf("gamma-tool: g=%.2f:%.2f:%.2f t=%d",
		req.Gamma.R, req.Gamma.G, req.Gamma.B, req.Temperature))
	token := profile.NewToken()
	if err := doc.SetMetadata("uuid", token); err != nil {
		log.Warn().Err(err).Msg("Could not attach uuid metadata")
	}

	table, err := ramp.Synthesize(req.Gamma, req.Temperature)
	if err != nil {
		return err
	}
	doc.SetVCGT(table)

	basename, err := profile.Encode(profile.Identity{
		GammaPct:    req.Gamma.Percent(),
		Temperature: req.Temperature,
		Token:       token,
	})
	if err != nil {
		return err
	}

	encoded, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("could not serialize new profile: %w", err)
	}
	if err := os.MkdirAll(c.iccDir, 0o755); err != nil {
		return fmt.Errorf("could not create profile directory: %w", err)
	}
	newPath := filepath.Join(c.iccDir, basename)
	if err := os.WriteFile(newPath, encoded, 0o644); err != nil {
		return fmt.Errorf("could not save new profile to %s: %w", newPath, err)
	}

	// The service discovers new files asynchronously; wait for it to notice
	// ours. On timeout the old profile stays active and nothing is deleted.
	newProf, err := c.awaitRegistration(ctx, newPath)
	if err != nil {
		c.recordApply(dev, req, newPath, "registration timeout")
		return err
	}
	if err := newProf.Connect(ctx); err != nil {
		c.recordApply(dev, req, newPath, "profile connect failed")
		return fmt.Errorf("could not connect to new profile: %w", err)
	}
	fmt.Fprintf(c.out, "New profile is %s\n", newProf.Filename())

	activated := true
	if err := dev.AddProfile(ctx, colord.RelationHard, newProf); err != nil {
		log.Warn().Err(err).Msg("Failed to add new profile to device")
		activated = false
	}
	if activated {
		if err := dev.MakeProfileDefault(ctx, newProf); err != nil {
			log.Warn().Err(err).Msg("Failed to make new profile default")
			activated = false
		}
	}

	// The old profile is torn down only once its replacement is active, so
	// the device never ends up with zero working profiles.
	if baseOwned && activated {
		fmt.Fprintln(c.out, "Removing old profile...")
		if err := dev.RemoveProfile(ctx, base); err != nil {
			log.Warn().Err(err).Msg("Could not remove old profile from device")
		} else {
			fmt.Fprintf(c.out, "Deleting file %s\n", baseName)
			if err := os.Remove(baseName); err != nil {
				log.Warn().Str("path", baseName).Err(err).Msg("Could not delete old profile file")
			}
		}
	}

	if activated {
		c.recordApply(dev, req, newPath, "ok")
		return nil
	}
	c.recordApply(dev, req, newPath, "activation failed")
	return fmt.Errorf("new profile %s was registered but not activated", newPath)
}

// awaitRegistration polls the service until it reports a profile backed by
// path, sleeping between attempts, up to the configured timeout.
func (c *Controller) awaitRegistration(ctx context.Context, path string) (colord.Profile, error) {
	deadline := c.now().Add(c.timeout)
	for {
		p, err := c.detect(ctx, path)
		if err == nil {
			return p, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !c.now().Before(deadline) {
			return nil, fmt.Errorf("timed out waiting for colord to detect new profile: %s", path)
		}
		c.sleep(c.pollInterval)
	}
}

func (c *Controller) record(dev colord.Device, rec ledger.Record) {
	if c.ledger == nil {
		return
	}
	rec.DeviceID = dev.ID()
	if err := c.ledger.Append(rec); err != nil {
		log.Warn().Err(err).Msg("Could not record operation in ledger")
	}
}

func (c *Controller) recordApply(dev colord.Device, req Request, path, outcome string) {
	c.record(dev, ledger.Record{
		Operation:   ledger.OpApply,
		Gamma:       fmt.Sprintf("%.2f:%.2f:%.2f", req.Gamma.R, req.Gamma.G, req.Gamma.B),
		Temperature: req.Temperature,
		ProfilePath: path,
		Outcome:     outcome,
	})
}

// isToolOwned reports whether a profile path carries the canonical prefix.
// Unparseable names still count as owned for cleanup purposes: the prefix is
// the ownership marker, the fields are parameters.
func isToolOwned(path string) bool {
	if path == "" {
		return false
	}
	_, own := profile.Decode(filepath.Base(path))
	return own != profile.NotOwned
}

func profileLabel(p colord.Profile) string {
	if name := p.Filename(); name != "" {
		return name
	}
	return p.ID()
}
