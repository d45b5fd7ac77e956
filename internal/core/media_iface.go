package core

type TrackKind string

const (
	TrackKindVideo TrackKind = "video"
	TrackKindAudio TrackKind = "audio"
)

// Track is a single local capture source. The MediaController is the
// sole owner; peer transports hold shared references and must never
// stop or replace a track themselves.
type Track interface {
	ID() string
	Kind() TrackKind
	Enabled() bool
	// SetEnabled flips the live flag without re-acquiring the device.
	// Remote sides simply receive muted/blanked media.
	SetEnabled(bool)
	// OnEnded registers a callback fired when the source terminates on
	// its own (e.g. a shared surface goes away).
	OnEnded(func())
	Close() error
}

// MediaDevices is the platform capture collaborator.
type MediaDevices interface {
	// AcquireUserMedia requests camera and/or microphone tracks.
	// A nil track is returned for a kind that was not requested.
	AcquireUserMedia(video, audio bool) (Track, Track, error)
	// AcquireDisplay requests a capture of the display surface.
	AcquireDisplay() (Track, error)
}
