package control

import "fmt"

// EventKind identifies a control surface interaction.
type EventKind int

const (
	// EventTempoStep moves the tempo slider to Step.
	EventTempoStep EventKind = iota
	// EventVolumeStep moves the volume slider to Step.
	EventVolumeStep
	// EventTempoPreset presses tempo button Preset (0-based).
	EventTempoPreset
	// EventTempoValue sets the tempo period directly to Value milliseconds.
	EventTempoValue
	// EventAccent sets the accent spin box to Count.
	EventAccent
	// EventSubAccent sets the sub-accent spin box to Count.
	EventSubAccent
	// EventPause sets the pause check box to Paused.
	EventPause
	// EventTogglePause flips the pause check box.
	EventTogglePause
	// EventQuit asks the application to shut down.
	EventQuit
)

var eventKindNames = map[EventKind]string{
	EventTempoStep:   "tempo-step",
	EventVolumeStep:  "volume-step",
	EventTempoPreset: "tempo-preset",
	EventTempoValue:  "tempo-value",
	EventAccent:      "accent",
	EventSubAccent:   "sub-accent",
	EventPause:       "pause",
	EventTogglePause: "toggle-pause",
	EventQuit:        "quit",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is a typed control surface interaction. Relative step and count
// events are offsets from the current position.
type Event struct {
	Kind     EventKind
	Step     int
	Count    int
	Preset   int
	Value    float64
	Paused   bool
	Relative bool
}

func (e Event) String() string {
	switch e.Kind {
	case EventTempoStep, EventVolumeStep:
		if e.Relative {
			return fmt.Sprintf("%s %+d", e.Kind, e.Step)
		}
		return fmt.Sprintf("%s %d", e.Kind, e.Step)
	case EventAccent, EventSubAccent:
		if e.Relative {
			return fmt.Sprintf("%s %+d", e.Kind, e.Count)
		}
		return fmt.Sprintf("%s %d", e.Kind, e.Count)
	case EventTempoPreset:
		return fmt.Sprintf("%s %d", e.Kind, e.Preset)
	case EventTempoValue:
		return fmt.Sprintf("%s %g", e.Kind, e.Value)
	case EventPause:
		return fmt.Sprintf("%s %t", e.Kind, e.Paused)
	default:
		return e.Kind.String()
	}
}
