package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/miditools/go-mididev"
	"github.com/miditools/go-mididev/internal/logging"
	"github.com/miditools/go-mididev/midimsg"
	"github.com/miditools/go-mididev/registry/alsa"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "midimon",
		Short: "Inspect and exercise MIDI devices",
		PersistentPreRun: func(*cobra.Command, []string) {
			config := logging.DefaultConfig()
			if verbose {
				config.Level = logging.LevelDebug
			}
			logging.SetDefault(logging.NewLogger(config))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(listCmd(), monitorCmd(), sendCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available devices",
		RunE: func(*cobra.Command, []string) error {
			reg := alsa.New()

			inputs, err := reg.Inputs()
			if err != nil {
				return err
			}
			outputs, err := reg.Outputs()
			if err != nil {
				return err
			}

			fmt.Println("Inputs:")
			for _, d := range inputs {
				fmt.Printf("  %3d  %s\n", d.ID, d.Name)
			}
			fmt.Println("Outputs:")
			for _, d := range outputs {
				fmt.Printf("  %3d  %s\n", d.ID, d.Name)
			}
			return nil
		},
	}
}

// printReceiver dumps every message to stdout. Long payloads arrive on
// borrowed buffers, so nothing here is retained past the callback.
type printReceiver struct{}

func (printReceiver) OnShortMessage(raw uint32, ts time.Duration) {
	status, d1, d2 := midimsg.UnpackShort(raw)
	fmt.Printf("%12s  short  %02X %02X %02X\n", ts.Truncate(time.Millisecond), status, d1, d2)
}

func (printReceiver) OnLongMessage(data []byte, ts time.Duration) {
	fmt.Printf("%12s  sysex  %d bytes  % X\n", ts.Truncate(time.Millisecond), len(data), data)
}

func (printReceiver) OnShortError(raw uint32, ts time.Duration) {
	fmt.Printf("%12s  short-error  %06X\n", ts.Truncate(time.Millisecond), raw)
}

func (printReceiver) OnLongError(data []byte, ts time.Duration) {
	fmt.Printf("%12s  sysex-error  %d bytes\n", ts.Truncate(time.Millisecond), len(data))
}

func monitorCmd() *cobra.Command {
	var bufCount, bufSize int

	cmd := &cobra.Command{
		Use:   "monitor <device-id>",
		Short: "Print every message an input device delivers",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid device id %q", args[0])
			}

			dev, err := mididev.OpenInput(alsa.New(), id, printReceiver{})
			if err != nil {
				return err
			}
			defer dev.Close()

			if err := dev.AddBuffers(bufCount, bufSize); err != nil {
				return err
			}
			if err := dev.StartStreaming(); err != nil {
				return err
			}

			fmt.Printf("monitoring device %d, ^C to stop\n", id)
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			if err := dev.StopStreaming(); err != nil {
				return err
			}

			snap := dev.Metrics().Snapshot()
			fmt.Printf("\n%d short, %d sysex (%d bytes), %d errors\n",
				snap.ShortIn, snap.LongIn, snap.LongInBytes, snap.ShortErrors+snap.LongErrors)
			return nil
		},
	}
	cmd.Flags().IntVar(&bufCount, "buffers", mididev.DefaultBufferCount, "receive buffers to arm")
	cmd.Flags().IntVar(&bufSize, "buffer-size", mididev.DefaultBufferSize, "size of each receive buffer")
	return cmd
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <device-id> <hex-bytes>",
		Short: "Send a message to an output device",
		Long: "Send a message to an output device. Three or fewer bytes go out\n" +
			"as a short message; anything longer is sent as SysEx.",
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid device id %q", args[0])
			}
			payload, err := hex.DecodeString(strings.ReplaceAll(args[1], " ", ""))
			if err != nil {
				return fmt.Errorf("invalid hex payload: %w", err)
			}
			if len(payload) == 0 {
				return fmt.Errorf("empty payload")
			}

			dev, err := mididev.OpenOutput(alsa.New(), id)
			if err != nil {
				return err
			}
			defer dev.Close()

			if len(payload) <= 3 {
				var d1, d2 byte
				if len(payload) > 1 {
					d1 = payload[1]
				}
				if len(payload) > 2 {
					d2 = payload[2]
				}
				return dev.Send(midimsg.PackShort(payload[0], d1, d2))
			}
			return dev.SendLong(payload)
		},
	}
	return cmd
}
