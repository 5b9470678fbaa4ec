package guidance

import (
	"log/slog"
	"slices"
	"time"

	"indoor-navigator/internal/navgraph"
)

// CueKind says what a Navigator wants announced.
type CueKind int

const (
	// Silent: keep going, nothing to say.
	Silent CueKind = iota
	// Checkpoint: the walker reached the next waypoint of the route.
	Checkpoint
	TurnLeft
	TurnRight
	// Arrived: the destination was reached. Reported once.
	Arrived
)

func (k CueKind) String() string {
	switch k {
	case Silent:
		return "silent"
	case Checkpoint:
		return "checkpoint"
	case TurnLeft:
		return "turn_left"
	case TurnRight:
		return "turn_right"
	case Arrived:
		return "arrived"
	default:
		return "unknown"
	}
}

// Audio clip names played for cues that have no waypoint-specific clip.
const (
	AudioCheckpoint = "beep_checkpoint"
	AudioTurnLeft   = "turn_left"
	AudioTurnRight  = "turn_right"
	AudioArrived    = "destination_reached"
)

// Cue is the outcome of one Navigator update.
type Cue struct {
	Kind CueKind
	// Waypoint is the checkpoint reached, or the waypoint being walked to
	// for turn cues.
	Waypoint string
	// Audio is the clip to play, empty when Silent.
	Audio string
	// Next is the index in the route of the waypoint now being walked to.
	Next int
}

// Pose is the walker's estimated position and heading (radians,
// counter-clockwise from +X).
type Pose struct {
	Position navgraph.Coordinates
	Heading  float64
}

// Config holds the Navigator thresholds.
type Config struct {
	ArrivalRadius float64       `yaml:"arrival_radius" validate:"gt=0"`
	Cooldown      time.Duration `yaml:"cooldown" validate:"gte=0"`
	TurnThreshold float64       `yaml:"turn_threshold" validate:"gt=0,lt=3.1416"`
}

// DefaultConfig returns the thresholds used on the walking aid: 1.5 m
// arrival radius, 3 s between turn prompts, 0.35 rad before prompting.
func DefaultConfig() Config {
	return Config{
		ArrivalRadius: 1.5,
		Cooldown:      3 * time.Second,
		TurnThreshold: DefaultTurnThreshold,
	}
}

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithClock replaces time.Now, for simulations and tests.
func WithClock(now func() time.Time) NavigatorOption {
	return func(n *Navigator) { n.now = now }
}

// WithLogger logs checkpoints and arrivals at debug level.
func WithLogger(logger *slog.Logger) NavigatorOption {
	return func(n *Navigator) { n.logger = logger }
}

// Navigator follows a walker along a route. It is not safe for concurrent
// use; each walker gets its own.
type Navigator struct {
	graph  *navgraph.Graph
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	path     []string
	next     int
	arrived  bool
	lastTurn time.Time
}

// NewNavigator starts guidance along path, aiming for its second waypoint.
func NewNavigator(g *navgraph.Graph, path []string, cfg Config, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		graph:  g,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.Reset(path)
	return n
}

// Reset replaces the route and starts over.
func (n *Navigator) Reset(path []string) {
	n.path = slices.Clone(path)
	n.next = 1
	n.arrived = false
	n.lastTurn = time.Time{}
}

// Arrived reports whether the destination was reached.
func (n *Navigator) Arrived() bool { return n.arrived }

// Target returns the waypoint currently walked to.
func (n *Navigator) Target() (string, bool) {
	if n.arrived || n.next >= len(n.path) {
		return "", false
	}
	return n.path[n.next], true
}

// Update advances guidance with a new pose estimate.
//
// Reaching the target waypoint (within ArrivalRadius) yields a Checkpoint
// cue with the waypoint's own clip and immediately re-enables turn prompts.
// Otherwise, once Cooldown has passed since the last prompt, a heading error
// beyond TurnThreshold yields TurnLeft or TurnRight. Arrived is reported the
// first time Update runs past the last waypoint; after that, and for an
// empty route, Update stays Silent.
func (n *Navigator) Update(pose Pose) Cue {
	if len(n.path) == 0 || n.arrived {
		return Cue{Kind: Silent, Next: n.next}
	}

	if n.next >= len(n.path) {
		n.arrived = true
		dest := n.path[len(n.path)-1]
		n.logger.Debug("destination_reached", "waypoint", dest)
		return Cue{Kind: Arrived, Waypoint: dest, Audio: AudioArrived, Next: n.next}
	}

	targetID := n.path[n.next]
	target, ok := n.graph.Waypoint(targetID)
	if !ok {
		return Cue{Kind: Silent, Next: n.next}
	}

	if pose.Position.Distance(target.Coordinates) < n.cfg.ArrivalRadius {
		n.logger.Debug("checkpoint_reached", "waypoint", targetID, "index", n.next)
		audio := target.Cue
		if audio == "" {
			audio = AudioCheckpoint
		}
		n.next++
		n.lastTurn = time.Time{}
		return Cue{Kind: Checkpoint, Waypoint: targetID, Audio: audio, Next: n.next}
	}

	now := n.now()
	if !n.lastTurn.IsZero() && now.Sub(n.lastTurn) < n.cfg.Cooldown {
		return Cue{Kind: Silent, Next: n.next}
	}

	heading := navgraph.NormalizeAngle(pose.Position.Bearing(target.Coordinates) - pose.Heading)
	switch {
	case heading > n.cfg.TurnThreshold:
		n.lastTurn = now
		return Cue{Kind: TurnLeft, Waypoint: targetID, Audio: AudioTurnLeft, Next: n.next}
	case heading < -n.cfg.TurnThreshold:
		n.lastTurn = now
		return Cue{Kind: TurnRight, Waypoint: targetID, Audio: AudioTurnRight, Next: n.next}
	default:
		return Cue{Kind: Silent, Next: n.next}
	}
}
