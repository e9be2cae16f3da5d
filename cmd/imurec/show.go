package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/imurec/internal/export"
	"github.com/srg/imurec/internal/recording"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <recording.json>",
	Short: "Summarize a saved recording",
	Long: `Prints the metadata of a raw gesture recording and per-device sample counts.

Example:
  imurec show ~/GSD_Recordings/wave1700000000000.json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showNoColor bool

func init() {
	showCmd.Flags().BoolVar(&showNoColor, "no-color", false, "Disable colored output")
}

func runShow(cmd *cobra.Command, args []string) error {
	if _, _, err := setupCommand(cmd); err != nil {
		return err
	}
	cmd.SilenceUsage = true

	g, err := export.Load(args[0])
	if err != nil {
		return err
	}

	printRecording(cmd.OutOrStdout(), g, !showNoColor)
	return nil
}

func printRecording(out io.Writer, g *recording.GestureData, colored bool) {
	heading := color.New(color.FgCyan, color.Bold)
	key := color.New(color.FgYellow)
	if colored {
		heading.EnableColor()
		key.EnableColor()
	} else {
		heading.DisableColor()
		key.DisableColor()
	}

	field := func(name, value string) {
		fmt.Fprintf(out, "  %s %s\n", key.Sprintf("%-9s", name+":"), value)
	}

	fmt.Fprintf(out, "%s %s\n", heading.Sprint("Recording:"), g.Label)
	field("Start", formatMillis(g.StartTime))
	field("End", formatMillis(g.EndTime))
	field("Duration", (time.Duration(g.EndTime-g.StartTime) * time.Millisecond).String())
	field("Host", g.DeviceID)
	if g.Note != "" {
		field("Note", g.Note)
	}
	field("Marks", fmt.Sprintf("%d", len(g.MarkedTimeStamps)))
	field("Devices", fmt.Sprintf("%d", len(g.Datas)))

	for _, d := range g.Datas {
		acc, gyro := d.Counts()
		fmt.Fprintf(out, "    %s (%s, drift %s): %d accel, %d gyro\n",
			heading.Sprint(d.DeviceMac), d.DeviceName, d.DeviceDrift, acc, gyro)
	}
}

func formatMillis(ms int64) string {
	return fmt.Sprintf("%s (%d)", time.UnixMilli(ms).UTC().Format(time.RFC3339), ms)
}
