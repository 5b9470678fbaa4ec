package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"indoor-navigator/internal/guidance"
	"indoor-navigator/internal/locate"
	"indoor-navigator/internal/logging"
	"indoor-navigator/internal/mapfile"
	"indoor-navigator/internal/navgraph"
	"indoor-navigator/internal/pathfind"
	"indoor-navigator/internal/spatial"
)

// loadedMap is a built graph plus what was skipped on the way.
type loadedMap struct {
	graph       *navgraph.Graph
	diagnostics []navgraph.Diagnostic
	warnings    []mapfile.Warning
}

func cliLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return logging.New(cmd.ErrOrStderr(), level, format)
}

func loadMap(cmd *cobra.Command, path string) (loadedMap, error) {
	radio, err := cmd.Flags().GetString("radio")
	if err != nil {
		return loadedMap{}, fmt.Errorf("failed to read --radio flag: %w", err)
	}
	doc, warnings, err := mapfile.Load(path, radio)
	if err != nil {
		return loadedMap{}, err
	}
	g, diags := navgraph.Build(doc, navgraph.WithLogger(cliLogger(cmd)))
	return loadedMap{graph: g, diagnostics: diags, warnings: warnings}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runDemo(cmd *cobra.Command, args []string) error {
	dir := filepath.Join("data", "maps")
	if len(args) == 1 {
		dir = args[0]
	}
	layout, _ := cmd.Flags().GetString("layout")
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()
	doc := mapfile.DemoHallway()

	switch layout {
	case "campus":
		mapPath := filepath.Join(dir, "campus_map.json")
		radioPath := filepath.Join(dir, "campus_radio_map.json")
		if err := mapfile.SaveCampus(doc, mapPath, radioPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s and %s\n", mapPath, radioPath)
	case "document":
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported --format %q (supported: json, yaml)", format)
		}
		path := filepath.Join(dir, "demo_map."+format)
		n, err := mapfile.Save(doc, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s (%d bytes)\n", path, n)
	default:
		return fmt.Errorf("unsupported --layout %q (supported: campus, document)", layout)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	m, err := loadMap(cmd, args[0])
	if err != nil {
		return err
	}
	strict, _ := cmd.Flags().GetBool("strict")
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	problems := len(m.diagnostics) + len(m.warnings)
	if asJSON {
		diagnostics := make([]string, 0, len(m.diagnostics))
		for _, d := range m.diagnostics {
			diagnostics = append(diagnostics, d.String())
		}
		warnings := make([]string, 0, len(m.warnings))
		for _, w := range m.warnings {
			warnings = append(warnings, w.String())
		}
		if err := printJSON(out, map[string]any{
			"map":         args[0],
			"waypoints":   m.graph.Len(),
			"edges":       m.graph.EdgeCount(),
			"diagnostics": diagnostics,
			"warnings":    warnings,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s: %d waypoints, %d edges\n", args[0], m.graph.Len(), m.graph.EdgeCount())
		for _, d := range m.diagnostics {
			fmt.Fprintf(out, "  skipped: %s\n", d)
		}
		for _, w := range m.warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
		if problems == 0 {
			fmt.Fprintln(out, "  ok")
		}
	}

	if strict && problems > 0 {
		return fmt.Errorf("%d record(s) skipped", problems)
	}
	return nil
}

func runRoute(cmd *cobra.Command, args []string) error {
	m, err := loadMap(cmd, args[0])
	if err != nil {
		return err
	}
	from, to := args[1], args[2]
	asJSON, _ := cmd.Flags().GetBool("json")

	res := pathfind.Search(m.graph, from, to)
	if res.Status != pathfind.Found {
		return fmt.Errorf("no path from %s to %s (%s)", from, to, res.Status)
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"from":     from,
			"to":       to,
			"path":     res.Path,
			"cost":     res.Cost,
			"explored": res.Explored,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "route %s -> %s cost=%.2f explored=%d\n", from, to, res.Cost, res.Explored)
	for i, id := range res.Path {
		wp, _ := m.graph.Waypoint(id)
		fmt.Fprintf(out, "%d. %s (%.2f, %.2f) %s\n", i+1, id, wp.Coordinates.X, wp.Coordinates.Y, wp.Descriptor)
	}
	return nil
}

// parseScan reads beacon=rssi pairs.
func parseScan(args []string) (locate.Scan, error) {
	scan := make(locate.Scan, len(args))
	for _, arg := range args {
		beacon, raw, ok := strings.Cut(arg, "=")
		beacon = strings.TrimSpace(beacon)
		if !ok || beacon == "" {
			return nil, fmt.Errorf("invalid reading %q, want beacon=rssi", arg)
		}
		rssi, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid rssi in %q: %w", arg, err)
		}
		scan[beacon] = rssi
	}
	return scan, nil
}

func runLocate(cmd *cobra.Command, args []string) error {
	m, err := loadMap(cmd, args[0])
	if err != nil {
		return err
	}
	scan, err := parseScan(args[1:])
	if err != nil {
		return err
	}
	k, _ := cmd.Flags().GetInt("k")
	asJSON, _ := cmd.Flags().GetBool("json")

	match, ok := locate.Locate(m.graph, scan)
	if !ok {
		return errors.New("location unknown")
	}
	estimate, ranked, estimated := locate.Estimate(m.graph, scan, k)
	snapped := ""
	if estimated {
		if hit, ok := spatial.New(m.graph).Nearest(estimate); ok {
			snapped = hit.Waypoint.ID
		}
	}

	if asJSON {
		result := map[string]any{
			"closest": match.ID,
			"overlap": match.Overlap,
			"matched": match.Matched(),
		}
		if match.Matched() {
			result["distance"] = match.Distance
		}
		if estimated {
			result["estimate"] = estimate
			result["snapped"] = snapped
			ids := make([]string, 0, len(ranked))
			for _, r := range ranked {
				ids = append(ids, r.ID)
			}
			result["ranked"] = ids
		}
		return printJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	if !match.Matched() {
		fmt.Fprintf(out, "closest %s (no beacon in common, position unreliable)\n", match.ID)
		return nil
	}
	fmt.Fprintf(out, "closest %s distance=%.2f shared=%d\n", match.ID, match.Distance, match.Overlap)
	if estimated {
		fmt.Fprintf(out, "estimate (%.2f, %.2f) from %d match(es), nearest waypoint %s\n",
			estimate.X, estimate.Y, len(ranked), snapped)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	m, err := loadMap(cmd, args[0])
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	fc := mapfile.GeoJSON(m.graph)
	if from != "" || to != "" {
		path, ok := pathfind.FindPath(m.graph, from, to)
		if !ok {
			return fmt.Errorf("no path from %q to %q", from, to)
		}
		fc.Append(mapfile.Route(m.graph, path))
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	data = append(data, '\n')

	if outPath == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write GeoJSON: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d features to %s\n", len(fc.Features), outPath)
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	m, err := loadMap(cmd, args[0])
	if err != nil {
		return err
	}
	from, to := args[1], args[2]

	step, _ := cmd.Flags().GetFloat64("step")
	if step <= 0 {
		return fmt.Errorf("--step must be positive, got %v", step)
	}
	interval, _ := cmd.Flags().GetDuration("interval")
	cfg := guidance.DefaultConfig()
	cfg.ArrivalRadius, _ = cmd.Flags().GetFloat64("arrival-radius")
	cfg.Cooldown, _ = cmd.Flags().GetDuration("cooldown")
	cfg.TurnThreshold, _ = cmd.Flags().GetFloat64("turn-threshold")

	path, ok := pathfind.FindPath(m.graph, from, to)
	if !ok {
		return fmt.Errorf("no path from %s to %s", from, to)
	}
	steps, err := guidance.Directions(m.graph, path, guidance.Options{TurnThreshold: cfg.TurnThreshold})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Directions %s -> %s\n", from, to)
	for i, s := range steps {
		fmt.Fprintf(out, "%2d. %s\n", i+1, describeStep(s))
	}

	fmt.Fprintln(out, "Walk")
	events := simulate(m.graph, path, cfg, step, interval, cliLogger(cmd))
	for _, e := range events {
		fmt.Fprintf(out, "  +%-6s (%6.2f, %6.2f) %-10s %-20s %s\n",
			e.Elapsed, e.Position.X, e.Position.Y, e.Cue.Kind, e.Cue.Waypoint, e.Cue.Audio)
	}
	if len(events) == 0 || events[len(events)-1].Cue.Kind != guidance.Arrived {
		return errors.New("walk ended before the destination was announced")
	}
	return nil
}

func describeStep(s guidance.Step) string {
	switch s.Maneuver {
	case guidance.Depart:
		return fmt.Sprintf("depart %s toward %s", s.At, s.Toward)
	case guidance.Arrive:
		return fmt.Sprintf("after %.1f, arrive at %s", s.Distance, s.At)
	case guidance.Straight:
		return fmt.Sprintf("after %.1f, continue straight at %s toward %s", s.Distance, s.At, s.Toward)
	default:
		return fmt.Sprintf("after %.1f, turn %s (%.0f deg) at %s toward %s",
			s.Distance, s.Maneuver, guidance.Degrees(s.Angle), s.At, s.Toward)
	}
}
