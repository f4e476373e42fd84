package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/guidoenr/metronome/internal/app"
	"github.com/guidoenr/metronome/internal/audio"
	"github.com/guidoenr/metronome/internal/config"
	"golang.org/x/term"
)

func main() {
	var (
		configPath = flag.String("config", "", "Optional YAML preferences file")
		backend    = flag.String("backend", "portaudio", "Audio output (portaudio|oto|headless)")
		deviceName = flag.String("audio-device", "", "Optional PortAudio output device name (substring match)")
		sampleRate = flag.Int("sample-rate", 44100, "Output sample rate in Hz")
		blockSize  = flag.Int("block-size", 512, "Frames rendered per loop iteration; bounds pause latency")
		webAddr    = flag.String("web", "", "Serve the remote control panel on this address (e.g. :8080)")
		tracePath  = flag.String("trace", "", "Append per-event handling times to this CSV file")
		listDevs   = flag.Bool("list-audio-devices", false, "List available audio output devices and exit")
		noKeyboard = flag.Bool("no-keyboard", false, "Disable keyboard control")
		showStatus = flag.Bool("status", true, "Display status line")
		debug      = flag.Bool("debug", false, "Enable verbose logging")
	)

	flag.Parse()

	logger := log.New(os.Stdout, "[metronome] ", log.LstdFlags)
	if !*debug {
		logger.SetOutput(os.Stderr)
		logger.SetFlags(0)
	}

	if *listDevs {
		if err := audio.Initialize(); err != nil {
			logger.Fatalf("failed to initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
		devices, err := audio.ListDevices()
		if err != nil {
			logger.Fatalf("list devices: %v", err)
		}
		fmt.Printf("\n=== Audio Output Devices ===\n\n")
		for _, dev := range devices {
			if dev.MaxOutput == 0 {
				continue
			}
			markers := ""
			if dev.IsDefaultOutput {
				markers += " (default)"
			}
			fmt.Printf("- %s [%s]%s\n    inputs:%d outputs:%d sample:%.0f Hz\n",
				dev.Name, dev.HostAPI, markers, dev.MaxInput, dev.MaxOutput, dev.DefaultSampleHz)
		}
		return
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	// explicit flags win over the preferences file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			settings.Backend = *backend
		case "audio-device":
			settings.Device = *deviceName
		case "sample-rate":
			settings.SampleRate = *sampleRate
		case "block-size":
			settings.BlockSize = *blockSize
		case "web":
			settings.WebAddr = *webAddr
		}
	})
	if err := settings.Validate(); err != nil {
		logger.Fatalf("%v", err)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if !interactive && !*noKeyboard {
		logger.Printf("stdin is not a terminal, keyboard control disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Config{
		Settings:      settings,
		Keyboard:      interactive && !*noKeyboard,
		ShowStatusBar: *showStatus && term.IsTerminal(int(os.Stdout.Fd())),
		TracePath:     *tracePath,
		Log:           logger,
	})
	if err != nil {
		logger.Fatalf("failed to start metronome: %v", err)
	}

	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
	}
	if runErr != nil {
		if ctx.Err() != nil {
			fmt.Println("Exiting...")
			return
		}
		logger.Fatalf("runtime error: %v", runErr)
	}
}
