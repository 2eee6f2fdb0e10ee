// Command pmcore is a headless runner for the Pokémon Mini emulation
// core: load a BIOS and cartridge, optionally attach a netplay peer,
// run a fixed number of frames, and optionally dump a save state or a
// terminal view of the final frame.
//
// Flag/action structure and logging setup are grounded on
// cmd/jeebie/main.go's urfave/cli usage (app.Flags, app.Action,
// slog.NewTextHandler for headless diagnostics).
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/pokemini/pmcore"
	"github.com/pokemini/pmcore/frontend/terminal"
	"github.com/pokemini/pmcore/internal/netplay"
	"github.com/pokemini/pmcore/internal/savestate"
)

func main() {
	app := cli.NewApp()
	app.Name = "pmcore"
	app.Description = "A Pokémon Mini emulation core"
	app.Usage = "pmcore --bios <file> --rom <file> [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "bios", Usage: "Path to the BIOS image (required)"},
		cli.StringFlag{Name: "rom", Usage: "Path to the cartridge ROM file"},
		cli.StringFlag{Name: "eeprom", Usage: "Path to an EEPROM save file (optional)"},
		cli.IntFlag{Name: "frames", Usage: "Number of frames to run", Value: 60},
		cli.BoolFlag{Name: "view", Usage: "Show the final frame in a terminal viewer"},
		cli.BoolFlag{Name: "strict", Usage: "Halt on illegal opcodes instead of warning and continuing"},
		cli.StringFlag{Name: "save-state-out", Usage: "Write a save state to this path after running"},
		cli.StringFlag{Name: "netplay-listen", Usage: "Listen address (host:port) for an incoming netplay peer"},
		cli.StringFlag{Name: "netplay-dial", Usage: "Address (host:port) of a netplay peer to connect to"},
		cli.BoolFlag{Name: "debug", Usage: "Enable debug-level logging"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("pmcore: run failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	biosPath := c.String("bios")
	if biosPath == "" {
		cli.ShowAppHelp(c)
		return errors.New("pmcore: --bios is required")
	}

	bios, err := os.ReadFile(biosPath)
	if err != nil {
		return fmt.Errorf("pmcore: read BIOS: %w", err)
	}

	var rom []uint8
	if romPath := c.String("rom"); romPath != "" {
		rom, err = os.ReadFile(romPath)
		if err != nil {
			return fmt.Errorf("pmcore: read ROM: %w", err)
		}
	}

	var eeprom []uint8
	if eepromPath := c.String("eeprom"); eepromPath != "" {
		eeprom, err = os.ReadFile(eepromPath)
		if err != nil {
			return fmt.Errorf("pmcore: read EEPROM: %w", err)
		}
	}

	machine, err := pmcore.New(pmcore.Config{
		BIOS:                bios,
		ROM:                 rom,
		EEPROM:              eeprom,
		RTCTime:             time.Now(),
		IllegalOpcodeStrict: c.Bool("strict"),
	})
	if err != nil {
		return fmt.Errorf("pmcore: construct machine: %w", err)
	}

	if err := attachNetplay(machine, c); err != nil {
		return err
	}

	frames := c.Int("frames")
	if frames <= 0 {
		return errors.New("pmcore: --frames must be positive")
	}
	for i := 0; i < frames; i++ {
		machine.RunFrame()
		machine.PollNetplay()
	}

	slog.Info("run complete",
		"frames", machine.FrameCount(),
		"instructions", machine.InstructionCount(),
		"eeprom_dirty", machine.EEPROMDirty())

	if c.Bool("view") {
		if err := showFrame(machine); err != nil {
			return err
		}
	}

	if out := c.String("save-state-out"); out != "" {
		if err := writeSaveState(machine, out); err != nil {
			return err
		}
	}

	return nil
}

func attachNetplay(machine *pmcore.Machine, c *cli.Context) error {
	listen := c.String("netplay-listen")
	dial := c.String("netplay-dial")
	if listen == "" && dial == "" {
		return nil
	}
	if listen != "" && dial != "" {
		return errors.New("pmcore: only one of --netplay-listen / --netplay-dial may be set")
	}

	var link *netplay.Link
	var err error
	if listen != "" {
		slog.Info("netplay: waiting for peer", "address", listen)
		link, err = netplay.Listen(listen)
	} else {
		slog.Info("netplay: dialing peer", "address", dial)
		link, err = netplay.Dial(dial)
	}
	if err != nil {
		return fmt.Errorf("pmcore: netplay setup: %w", err)
	}

	machine.AttachNetplay(link)
	slog.Info("netplay: connected")
	return nil
}

func showFrame(machine *pmcore.Machine) error {
	viewer, err := terminal.New()
	if err != nil {
		return fmt.Errorf("pmcore: terminal viewer: %w", err)
	}
	defer viewer.Close()

	viewer.Draw(machine.Framebuffer())
	for !viewer.PollQuit() {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

func writeSaveState(machine *pmcore.Machine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pmcore: create save state file: %w", err)
	}
	defer f.Close()

	if err := savestate.Save(f, machine.SaveState()); err != nil {
		return fmt.Errorf("pmcore: write save state: %w", err)
	}
	slog.Info("save state written", "path", path)
	return nil
}
