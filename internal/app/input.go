package app

import (
	"context"
	"sync"

	"github.com/eiannone/keyboard"

	"github.com/guidoenr/metronome/internal/control"
)

const (
	fineSteps   = 16
	coarseSteps = 128
)

// keyEvent maps a key press to a control event.
func keyEvent(char rune, key keyboard.Key) (control.Event, bool) {
	switch key {
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return control.Event{Kind: control.EventQuit}, true
	case keyboard.KeySpace:
		return control.Event{Kind: control.EventTogglePause}, true
	case keyboard.KeyArrowUp:
		return control.Event{Kind: control.EventTempoStep, Step: fineSteps, Relative: true}, true
	case keyboard.KeyArrowDown:
		return control.Event{Kind: control.EventTempoStep, Step: -fineSteps, Relative: true}, true
	case keyboard.KeyPgup:
		return control.Event{Kind: control.EventTempoStep, Step: coarseSteps, Relative: true}, true
	case keyboard.KeyPgdn:
		return control.Event{Kind: control.EventTempoStep, Step: -coarseSteps, Relative: true}, true
	case keyboard.KeyArrowRight:
		return control.Event{Kind: control.EventVolumeStep, Step: fineSteps, Relative: true}, true
	case keyboard.KeyArrowLeft:
		return control.Event{Kind: control.EventVolumeStep, Step: -fineSteps, Relative: true}, true
	}

	switch {
	case char == 'q' || char == 'Q':
		return control.Event{Kind: control.EventQuit}, true
	case char == 'p' || char == 'P':
		return control.Event{Kind: control.EventTogglePause}, true
	case char >= '1' && char <= '9':
		return control.Event{Kind: control.EventTempoPreset, Preset: int(char - '1')}, true
	case char == 'a':
		return control.Event{Kind: control.EventAccent, Count: -1, Relative: true}, true
	case char == 'A':
		return control.Event{Kind: control.EventAccent, Count: 1, Relative: true}, true
	case char == 's':
		return control.Event{Kind: control.EventSubAccent, Count: -1, Relative: true}, true
	case char == 'S':
		return control.Event{Kind: control.EventSubAccent, Count: 1, Relative: true}, true
	}
	return control.Event{}, false
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Printf("keyboard input disabled: %v", err)
		return
	}

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			ev, ok := keyEvent(char, key)
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case a.events <- ev:
			}
			if ev.Kind == control.EventQuit {
				return
			}
		}
	}()
}
