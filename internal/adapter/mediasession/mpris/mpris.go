// Package mpris publishes now-playing state over D-Bus using the MPRIS
// MediaPlayer2 specification, giving desktop environments and hardware
// media keys control over the engine.
package mpris

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/echoforge/echoforge/internal/ports"
)

const (
	objectPath      = "/org/mpris/MediaPlayer2"
	rootInterface   = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
	busName         = "org.mpris.MediaPlayer2.echoforge"

	identity = "EchoForge"

	microsecond = 1e6
)

// Session is the MPRIS implementation of the MediaSession interface.
//
// Thread-safety: handlers and properties are guarded by a mutex; D-Bus
// method calls arrive on godbus's dispatch goroutine.
type Session struct {
	logger *slog.Logger

	mu       sync.Mutex
	conn     *dbus.Conn
	props    *prop.Properties
	handlers ports.TransportHandlers
	closed   bool
}

// New connects to the session bus and registers the player. An
// unavailable bus is an error the caller may treat as non-fatal; the
// engine runs fine without OS controls.
func New(logger *slog.Logger) (*Session, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}

	s := &Session{
		logger: logger.With("component", "mpris"),
		conn:   conn,
	}

	if err := s.export(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s.logger.Info("media session registered", "bus", busName)
	return s, nil
}

// export claims the bus name and wires up the MPRIS object tree.
func (s *Session) export() error {
	reply, err := s.conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("requesting bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", busName)
	}

	root := &rootObject{}
	player := &playerObject{session: s}

	if err := s.conn.Export(root, objectPath, rootInterface); err != nil {
		return fmt.Errorf("exporting root interface: %w", err)
	}
	if err := s.conn.Export(player, objectPath, playerInterface); err != nil {
		return fmt.Errorf("exporting player interface: %w", err)
	}

	propsSpec := map[string]map[string]*prop.Prop{
		rootInterface: {
			"CanQuit":             {Value: false, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanRaise":            {Value: false, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"HasTrackList":        {Value: false, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"Identity":            {Value: identity, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"SupportedUriSchemes": {Value: []string{"file", "http", "https"}, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"SupportedMimeTypes":  {Value: []string{"audio/mpeg", "audio/wav", "audio/flac", "audio/ogg"}, Writable: false, Emit: prop.EmitTrue, Callback: nil},
		},
		playerInterface: {
			"PlaybackStatus": {Value: "Stopped", Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"Rate":           {Value: 1.0, Writable: true, Emit: prop.EmitTrue, Callback: nil},
			"Metadata":       {Value: map[string]dbus.Variant{}, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"Volume":         {Value: 1.0, Writable: true, Emit: prop.EmitTrue, Callback: nil},
			"Position":       {Value: int64(0), Writable: false, Emit: prop.EmitFalse, Callback: nil},
			"MinimumRate":    {Value: 1.0, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"MaximumRate":    {Value: 1.0, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanGoNext":      {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanGoPrevious":  {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanPlay":        {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanPause":       {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanSeek":        {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"CanControl":     {Value: true, Writable: false, Emit: prop.EmitTrue, Callback: nil},
		},
	}

	props, err := prop.Export(s.conn, objectPath, propsSpec)
	if err != nil {
		return fmt.Errorf("exporting properties: %w", err)
	}
	s.props = props

	node := &introspect.Node{
		Name: objectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{Name: rootInterface, Methods: introspect.Methods(root)},
			{Name: playerInterface, Methods: introspect.Methods(player)},
		},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("exporting introspection: %w", err)
	}

	return nil
}

// SetMetadata publishes track metadata. A zero value clears the entry.
func (s *Session) SetMetadata(meta ports.NowPlaying) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if meta.TrackID == "" {
		s.props.SetMust(playerInterface, "Metadata", map[string]dbus.Variant{})
		return
	}

	metadata := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/org/echoforge/track/" + meta.TrackID)),
		"xesam:title":   dbus.MakeVariant(meta.Title),
		"xesam:artist":  dbus.MakeVariant([]string{meta.Artist}),
	}
	if meta.ArtworkURL != "" {
		metadata["mpris:artUrl"] = dbus.MakeVariant(meta.ArtworkURL)
	}

	s.props.SetMust(playerInterface, "Metadata", metadata)
}

// SetPlaybackState publishes the playing/paused flag.
func (s *Session) SetPlaybackState(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	status := "Paused"
	if playing {
		status = "Playing"
	}
	s.props.SetMust(playerInterface, "PlaybackStatus", status)
}

// SetPosition publishes position state in MPRIS microsecond units.
func (s *Session) SetPosition(position, duration, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.props.SetMust(playerInterface, "Position", int64(position*microsecond))
	s.props.SetMust(playerInterface, "Rate", rate)

	// Length rides along with the rest of the metadata map.
	if current, err := s.props.Get(playerInterface, "Metadata"); err == nil {
		if metadata, ok := current.Value().(map[string]dbus.Variant); ok && len(metadata) > 0 {
			metadata["mpris:length"] = dbus.MakeVariant(int64(duration * microsecond))
			s.props.SetMust(playerInterface, "Metadata", metadata)
		}
	}
}

// SetHandlers registers the transport actions the OS may invoke.
func (s *Session) SetHandlers(handlers ports.TransportHandlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = handlers
}

// Close releases the bus name and connection. Safe to call repeatedly.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if _, err := s.conn.ReleaseName(busName); err != nil {
		s.logger.Debug("failed to release bus name", "error", err)
	}
	return s.conn.Close()
}

// currentHandlers snapshots the handler set for a dispatch call.
func (s *Session) currentHandlers() ports.TransportHandlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers
}

// playing reports the published playback status.
func (s *Session) playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	v, err := s.props.Get(playerInterface, "PlaybackStatus")
	if err != nil {
		return false
	}
	status, _ := v.Value().(string)
	return status == "Playing"
}

// rootObject implements the org.mpris.MediaPlayer2 methods. The engine
// has no window to raise and is not quittable over the bus.
type rootObject struct{}

// Raise is a no-op; there is no window to bring forward.
func (r *rootObject) Raise() *dbus.Error { return nil }

// Quit is a no-op; lifecycle belongs to the hosting process.
func (r *rootObject) Quit() *dbus.Error { return nil }

// playerObject implements the org.mpris.MediaPlayer2.Player methods,
// routing them to the registered transport handlers.
type playerObject struct {
	session *Session
}

func (p *playerObject) Next() *dbus.Error {
	if fn := p.session.currentHandlers().OnNext; fn != nil {
		fn()
	}
	return nil
}

func (p *playerObject) Previous() *dbus.Error {
	if fn := p.session.currentHandlers().OnPrevious; fn != nil {
		fn()
	}
	return nil
}

func (p *playerObject) Play() *dbus.Error {
	if fn := p.session.currentHandlers().OnPlay; fn != nil {
		fn()
	}
	return nil
}

func (p *playerObject) Pause() *dbus.Error {
	if fn := p.session.currentHandlers().OnPause; fn != nil {
		fn()
	}
	return nil
}

func (p *playerObject) PlayPause() *dbus.Error {
	handlers := p.session.currentHandlers()
	if p.session.playing() {
		if handlers.OnPause != nil {
			handlers.OnPause()
		}
	} else if handlers.OnPlay != nil {
		handlers.OnPlay()
	}
	return nil
}

func (p *playerObject) Stop() *dbus.Error {
	if fn := p.session.currentHandlers().OnPause; fn != nil {
		fn()
	}
	return nil
}

func (p *playerObject) Seek(offset int64) *dbus.Error {
	if fn := p.session.currentHandlers().OnSeekBy; fn != nil {
		fn(float64(offset) / microsecond)
	}
	return nil
}

func (p *playerObject) SetPosition(_ dbus.ObjectPath, position int64) *dbus.Error {
	if fn := p.session.currentHandlers().OnSeekTo; fn != nil {
		fn(float64(position) / microsecond)
	}
	return nil
}

func (p *playerObject) OpenUri(_ string) *dbus.Error {
	// Playback is driven by the queue, not arbitrary URIs.
	return nil
}

// Verify that Session implements the MediaSession interface
var _ ports.MediaSession = (*Session)(nil)
