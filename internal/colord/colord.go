// Package colord provides access to the color-management service that owns
// display devices and their profile assignments. The service is exposed
// through small capability interfaces so the lifecycle logic can be exercised
// against fakes; the real implementation speaks D-Bus to the colord daemon.
package colord

import "context"

// RelationHard is the profile-device relation used for profiles the user
// explicitly assigned, as opposed to soft (automatic) associations.
const RelationHard = "hard"

// Client is a connection to the color-management service.
type Client interface {
	// Connect establishes the connection. Must be called before any other
	// method.
	Connect(ctx context.Context) error

	// DisplayDevices returns all display-kind devices known to the service.
	DisplayDevices(ctx context.Context) ([]Device, error)

	// FindProfileByFilename looks up a profile by the path of its backing
	// file. Returns an error while the service has not yet detected the
	// file; detection of freshly written files is asynchronous.
	FindProfileByFilename(ctx context.Context, path string) (Profile, error)

	Close() error
}

// Device is a display device handle owned by the service.
type Device interface {
	// ID is the service-assigned device identifier.
	ID() string

	// Profiles returns the device's profiles in priority order; the first
	// entry is the active one. An empty slice means no profile is assigned.
	Profiles(ctx context.Context) ([]Profile, error)

	// AddProfile associates a profile with the device.
	AddProfile(ctx context.Context, relation string, p Profile) error

	// MakeProfileDefault moves a profile to the top of the device's list,
	// activating it.
	MakeProfileDefault(ctx context.Context, p Profile) error

	// RemoveProfile detaches a profile from the device. The service then
	// falls back to the next profile in the list on its own.
	RemoveProfile(ctx context.Context, p Profile) error
}

// Profile is a handle to a profile registered with the service. Connect must
// be called before ID, Filename or ReadData.
type Profile interface {
	Connect(ctx context.Context) error

	// ID is the service-assigned profile identifier.
	ID() string

	// Filename is the path of the profile's backing file, or "" when the
	// profile has no file (e.g. virtual profiles).
	Filename() string

	// ReadData returns the raw ICC bytes of the backing file.
	ReadData(ctx context.Context) ([]byte, error)
}
