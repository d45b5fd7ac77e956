package session

import (
	"context"
	"fmt"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
)

// mediaController owns the local capture tracks. Exactly one outbound
// video and one outbound audio track exist at any instant; peer
// transports only ever hold shared references handed out here. All
// methods run on the coordinator loop.
type mediaController struct {
	devices core.MediaDevices
	coord   *Coordinator

	video  core.Track // outbound video: camera, or screen while sharing
	audio  core.Track
	camera core.Track // retained camera while the screen track is live
	screen bool
}

func newMediaController(devices core.MediaDevices, coord *Coordinator) mediaController {
	return mediaController{devices: devices, coord: coord}
}

// ToggleVideo flips the camera-enabled flag. Two calls restore the
// original state; the track itself is never re-acquired.
func (c *Coordinator) ToggleVideo(ctx context.Context) (bool, error) {
	var on bool
	err := c.do(ctx, func() error {
		var err error
		on, err = c.media.toggle(core.TrackKindVideo)
		if err == nil {
			c.notify()
		}
		return err
	})
	return on, err
}

// ToggleAudio flips the microphone-enabled flag.
func (c *Coordinator) ToggleAudio(ctx context.Context) (bool, error) {
	var on bool
	err := c.do(ctx, func() error {
		var err error
		on, err = c.media.toggle(core.TrackKindAudio)
		if err == nil {
			c.notify()
		}
		return err
	})
	return on, err
}

// StartScreenShare substitutes the display capture for the camera on
// every live peer session. No-op while already sharing.
func (c *Coordinator) StartScreenShare(ctx context.Context) error {
	return c.do(ctx, func() error { return c.media.startScreenShare() })
}

// StopScreenShare restores the camera. No-op while not sharing.
func (c *Coordinator) StopScreenShare(ctx context.Context) error {
	return c.do(ctx, func() error { return c.media.stopScreenShare() })
}

// acquire requests the local capture devices. Denial of everything we
// asked for is fatal to the calling operation; no session can proceed
// without at least one local track.
func (m *mediaController) acquire(wantVideo, wantAudio bool) error {
	if m.video != nil || m.audio != nil {
		return nil
	}
	video, audio, err := m.devices.AcquireUserMedia(wantVideo, wantAudio)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMediaAccessDenied, err)
	}
	if video == nil && audio == nil {
		return domain.ErrMediaAccessDenied
	}
	m.video = video
	m.audio = audio
	return nil
}

// release stops every owned track and resets the controller.
func (m *mediaController) release() {
	for _, t := range []core.Track{m.video, m.audio, m.camera} {
		if t != nil {
			_ = t.Close()
		}
	}
	m.video, m.audio, m.camera = nil, nil, nil
	m.screen = false
}

func (m *mediaController) toggle(kind core.TrackKind) (bool, error) {
	t := m.audio
	if kind == core.TrackKindVideo {
		// Toggling video targets the camera even while the screen
		// track is the outbound one, so the state survives sharing.
		t = m.video
		if m.screen && m.camera != nil {
			t = m.camera
		}
	}
	if t == nil {
		return false, domain.ErrMediaAccessDenied
	}
	t.SetEnabled(!t.Enabled())
	return t.Enabled(), nil
}

func (m *mediaController) startScreenShare() error {
	if m.screen {
		return nil
	}
	screen, err := m.devices.AcquireDisplay()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMediaAccessDenied, err)
	}
	// The source can end on its own (surface closed); behave exactly
	// like an explicit stop, off the loop via post.
	id := screen.ID()
	screen.OnEnded(func() {
		m.coord.post(func() { m.coord.media.onScreenEnded(id) })
	})

	m.camera = m.video
	m.video = screen
	m.screen = true
	m.coord.replaceOutbound(core.TrackKindVideo, screen)
	m.coord.notify()
	m.coord.logg.Info().Str("track", id).Msg("screen share started")
	return nil
}

func (m *mediaController) stopScreenShare() error {
	if !m.screen {
		return nil
	}
	screen := m.video
	m.video = m.camera
	m.camera = nil
	m.screen = false
	if screen != nil {
		_ = screen.Close()
	}
	if m.video != nil {
		m.coord.replaceOutbound(core.TrackKindVideo, m.video)
	}
	m.coord.notify()
	m.coord.logg.Info().Msg("screen share stopped")
	return nil
}

// onScreenEnded is the self-termination path. The track id guards
// against a stale notification from a share that was already stopped.
func (m *mediaController) onScreenEnded(trackID string) {
	if !m.screen || m.video == nil || m.video.ID() != trackID {
		return
	}
	m.coord.logg.Info().Str("track", trackID).Msg("screen track ended, restoring camera")
	_ = m.stopScreenShare()
}

// outbound lists the current local track set for attachment.
func (m *mediaController) outbound() []core.Track {
	var out []core.Track
	if m.video != nil {
		out = append(out, m.video)
	}
	if m.audio != nil {
		out = append(out, m.audio)
	}
	return out
}

func (m *mediaController) state() MediaState {
	s := MediaState{Screen: m.screen}
	if m.screen {
		if m.camera != nil {
			s.Video = m.camera.Enabled()
		}
	} else if m.video != nil {
		s.Video = m.video.Enabled()
	}
	if m.audio != nil {
		s.Audio = m.audio.Enabled()
	}
	return s
}
