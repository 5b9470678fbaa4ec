// Command navctl works with indoor navigation maps offline: it writes the
// demo map, validates map files, answers route and locate queries, exports
// GeoJSON and walks a simulated user along a route.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "navctl",
		Short: "Inspect and exercise BLE indoor navigation maps",
		Long: `navctl loads a building map (reference points, connections and BLE
fingerprints) and runs the same queries as the navigation service:
shortest routes, fingerprint matching and turn-by-turn guidance.

Maps are JSON or YAML documents, or a campus_map.json file paired with a
radio map passed through --radio.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("radio", "", "Radio map merged into a campus-layout map")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text|json")

	demoCmd := &cobra.Command{
		Use:   "demo [dir]",
		Short: "Write the three-point hallway demo map",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDemo,
	}
	demoCmd.Flags().String("layout", "campus", "Output layout: campus|document")
	demoCmd.Flags().String("format", "json", "Document format when --layout=document: json|yaml")

	validateCmd := &cobra.Command{
		Use:   "validate <map>",
		Short: "Load a map and report skipped or suspicious records",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	validateCmd.Flags().Bool("strict", false, "Fail when any record was skipped")
	validateCmd.Flags().Bool("json", false, "Print machine-readable report")

	routeCmd := &cobra.Command{
		Use:   "route <map> <from> <to>",
		Short: "Find the shortest walking route between two waypoints",
		Args:  cobra.ExactArgs(3),
		RunE:  runRoute,
	}
	routeCmd.Flags().Bool("json", false, "Print machine-readable route")

	locateCmd := &cobra.Command{
		Use:   "locate <map> <beacon=rssi>...",
		Short: "Match a BLE scan against the map's fingerprints",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLocate,
	}
	locateCmd.Flags().Int("k", 3, "Matches averaged into the position estimate")
	locateCmd.Flags().Bool("json", false, "Print machine-readable result")

	exportCmd := &cobra.Command{
		Use:   "export <map>",
		Short: "Export the map as GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().String("from", "", "Add the route starting at this waypoint")
	exportCmd.Flags().String("to", "", "Add the route ending at this waypoint")

	simulateCmd := &cobra.Command{
		Use:   "simulate <map> <from> <to>",
		Short: "Walk a route and print the directions and audio cues",
		Args:  cobra.ExactArgs(3),
		RunE:  runSimulate,
	}
	simulateCmd.Flags().Float64("step", 1.0, "Distance walked between position updates")
	simulateCmd.Flags().Duration("interval", time.Second, "Time between position updates")
	simulateCmd.Flags().Float64("arrival-radius", 1.5, "Distance at which a waypoint counts as reached")
	simulateCmd.Flags().Duration("cooldown", 3*time.Second, "Minimum time between turn prompts")
	simulateCmd.Flags().Float64("turn-threshold", 0.35, "Heading error in radians before prompting a turn")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "navctl %s\n", version)
		},
	}

	rootCmd.AddCommand(
		demoCmd,
		validateCmd,
		routeCmd,
		locateCmd,
		exportCmd,
		simulateCmd,
		versionCmd,
	)
	return rootCmd
}
