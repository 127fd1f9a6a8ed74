// Package minecraft is the boundary to the external game-connection library.
// The console never speaks the game protocol itself: it builds connection
// options, hands them to a Dialer and consumes the normalized signal callbacks
// the connection emits.
package minecraft

import "context"

// Control is one of the client movement control states.
type Control string

const (
	ControlForward Control = "forward"
	ControlBack    Control = "back"
	ControlLeft    Control = "left"
	ControlRight   Control = "right"
	ControlJump    Control = "jump"
	ControlSprint  Control = "sprint"
	ControlSneak   Control = "sneak"
)

// MovementControls lists every directional control, in the order the control
// surface clears them.
var MovementControls = []Control{
	ControlForward, ControlBack, ControlLeft, ControlRight,
	ControlJump, ControlSprint, ControlSneak,
}

// Slot is one inventory slot snapshot.
type Slot struct {
	Slot  int
	Name  string
	Count int
}

// Options carries everything needed to open one connection.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	Auth     string
	Version  string

	PhysicsEnabled     bool
	DisableChatSigning bool
	// FakeHost spoofs the handshake hostname with the configured server name.
	FakeHost bool

	// SOCKS5 egress proxy; empty ProxyAddr means a direct connection.
	ProxyAddr     string
	ProxyUsername string
	ProxyPassword string
}

// Events bundles the low-level signal callbacks a connection emits. Any nil
// callback is simply not delivered.
type Events struct {
	OnLogin         func()
	OnSpawn         func()
	OnChat          func(username, message string)
	OnSystemMessage func(message string)
	OnHealth        func(health float64, food int)
	OnExperience    func(level, points int, progress float64)
	OnInventory     func(slot Slot)
	OnError         func(err error)
	OnEnd           func(reason string)
	OnKicked        func(reason string)
	OnDeath         func()
}

// Conn is one live connection to the game server.
type Conn interface {
	Chat(message string) error
	SetControlState(c Control, active bool) error
	Look(yaw, pitch float64) error
	SwingArm() error
	// Ended reports whether the underlying stream has closed. Control calls
	// after that point are no-ops.
	Ended() bool
	Quit() error
}

// Dialer opens connections. The production implementation wraps the external
// protocol library; tests plug in fakes.
type Dialer interface {
	Dial(ctx context.Context, opts Options, ev Events) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, opts Options, ev Events) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, opts Options, ev Events) (Conn, error) {
	return f(ctx, opts, ev)
}
