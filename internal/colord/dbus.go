package colord

import (
	"context"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	busName    = "org.freedesktop.ColorManager"
	rootPath   = dbus.ObjectPath("/org/freedesktop/ColorManager")
	rootIface  = "org.freedesktop.ColorManager"
	devIface   = "org.freedesktop.ColorManager.Device"
	profIface  = "org.freedesktop.ColorManager.Profile"
	deviceKind = "display"
)

// DBusClient talks to the colord daemon on the system bus.
type DBusClient struct {
	conn *dbus.Conn
	root dbus.BusObject
}

// NewDBusClient creates an unconnected client.
func NewDBusClient() *DBusClient {
	return &DBusClient{}
}

// Connect opens the system bus and verifies the colord service is reachable.
func (c *DBusClient) Connect(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	c.conn = conn
	c.root = conn.Object(busName, rootPath)

	// Ping the daemon so a missing service fails here, not mid-operation.
	var version dbus.Variant
	err = c.root.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, rootIface, "DaemonVersion").Store(&version)
	if err != nil {
		conn.Close()
		c.conn = nil
		return fmt.Errorf("colord service unavailable: %w", err)
	}

	log.Debug().Str("daemon_version", fmt.Sprint(version.Value())).Msg("Connected to colord")
	return nil
}

// Close closes the bus connection.
func (c *DBusClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// DisplayDevices enumerates display-kind devices. Devices whose properties
// cannot be read are skipped with a warning, matching the per-device error
// policy.
func (c *DBusClient) DisplayDevices(ctx context.Context) ([]Device, error) {
	var paths []dbus.ObjectPath
	err := c.root.CallWithContext(ctx, rootIface+".GetDevicesByKind", 0, deviceKind).Store(&paths)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]Device, 0, len(paths))
	for _, path := range paths {
		dev := &dbusDevice{conn: c.conn, path: path}
		id, err := dev.getStringProp(ctx, "DeviceId")
		if err != nil {
			log.Warn().Str("path", string(path)).Err(err).Msg("Could not read device properties, skipping")
			continue
		}
		dev.id = id
		devices = append(devices, dev)
	}
	return devices, nil
}

// FindProfileByFilename asks colord for the profile backed by the given file.
// colord returns an error until its filesystem watcher has picked the file up.
func (c *DBusClient) FindProfileByFilename(ctx context.Context, path string) (Profile, error) {
	var profPath dbus.ObjectPath
	err := c.root.CallWithContext(ctx, rootIface+".FindProfileByFilename", 0, path).Store(&profPath)
	if err != nil {
		return nil, fmt.Errorf("profile not known to colord: %w", err)
	}
	return &dbusProfile{conn: c.conn, path: profPath}, nil
}

type dbusDevice struct {
	conn *dbus.Conn
	path dbus.ObjectPath
	id   string
}

func (d *dbusDevice) ID() string {
	return d.id
}

func (d *dbusDevice) obj() dbus.BusObject {
	return d.conn.Object(busName, d.path)
}

func (d *dbusDevice) getStringProp(ctx context.Context, name string) (string, error) {
	var v dbus.Variant
	err := d.obj().CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, devIface, name).Store(&v)
	if err != nil {
		return "", err
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("property %s has unexpected type %T", name, v.Value())
	}
	return s, nil
}

func (d *dbusDevice) Profiles(ctx context.Context) ([]Profile, error) {
	var v dbus.Variant
	err := d.obj().CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, devIface, "Profiles").Store(&v)
	if err != nil {
		return nil, fmt.Errorf("failed to read device profiles: %w", err)
	}
	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("profiles property has unexpected type %T", v.Value())
	}

	profiles := make([]Profile, 0, len(paths))
	for _, p := range paths {
		profiles = append(profiles, &dbusProfile{conn: d.conn, path: p})
	}
	return profiles, nil
}

func (d *dbusDevice) AddProfile(ctx context.Context, relation string, p Profile) error {
	dp, err := asDBusProfile(p)
	if err != nil {
		return err
	}
	call := d.obj().CallWithContext(ctx, devIface+".AddProfile", 0, relation, dp.path)
	if call.Err != nil {
		return fmt.Errorf("failed to add profile to device %s: %w", d.id, call.Err)
	}
	return nil
}

func (d *dbusDevice) MakeProfileDefault(ctx context.Context, p Profile) error {
	dp, err := asDBusProfile(p)
	if err != nil {
		return err
	}
	call := d.obj().CallWithContext(ctx, devIface+".MakeProfileDefault", 0, dp.path)
	if call.Err != nil {
		return fmt.Errorf("failed to make profile default on device %s: %w", d.id, call.Err)
	}
	return nil
}

func (d *dbusDevice) RemoveProfile(ctx context.Context, p Profile) error {
	dp, err := asDBusProfile(p)
	if err != nil {
		return err
	}
	call := d.obj().CallWithContext(ctx, devIface+".RemoveProfile", 0, dp.path)
	if call.Err != nil {
		return fmt.Errorf("failed to remove profile from device %s: %w", d.id, call.Err)
	}
	return nil
}

type dbusProfile struct {
	conn     *dbus.Conn
	path     dbus.ObjectPath
	id       string
	filename string
}

func asDBusProfile(p Profile) (*dbusProfile, error) {
	dp, ok := p.(*dbusProfile)
	if !ok {
		return nil, fmt.Errorf("profile %T does not belong to this client", p)
	}
	return dp, nil
}

// Connect reads the profile's properties from the daemon.
func (p *dbusProfile) Connect(ctx context.Context) error {
	obj := p.conn.Object(busName, p.path)
	for prop, dst := range map[string]*string{
		"ProfileId": &p.id,
		"Filename":  &p.filename,
	} {
		var v dbus.Variant
		err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, profIface, prop).Store(&v)
		if err != nil {
			return fmt.Errorf("failed to connect to profile %s: %w", p.path, err)
		}
		if s, ok := v.Value().(string); ok {
			*dst = s
		}
	}
	return nil
}

func (p *dbusProfile) ID() string {
	return p.id
}

func (p *dbusProfile) Filename() string {
	return p.filename
}

// ReadData loads the raw ICC bytes of the backing file. colord stores
// profiles as plain files on the local filesystem.
func (p *dbusProfile) ReadData(ctx context.Context) ([]byte, error) {
	if p.filename == "" {
		return nil, fmt.Errorf("profile %s has no backing file", p.path)
	}
	data, err := os.ReadFile(p.filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile data: %w", err)
	}
	return data, nil
}
