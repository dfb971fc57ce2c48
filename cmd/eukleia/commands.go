package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eukleia/eukleia/internal/auth"
	"github.com/eukleia/eukleia/internal/config"
	"github.com/eukleia/eukleia/internal/editor"
	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/store"
	"github.com/eukleia/eukleia/internal/store/sqlite"
)

func newEditor() (*editor.Editor, error) {
	settings, err := config.LoadSettings(settingsFile)
	if err != nil {
		return nil, err
	}
	return editor.New(settings)
}

func openStore() (*sqlite.Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return sqlite.New(dbPath)
}

func replayCmd() *cobra.Command {
	var (
		save     bool
		asJSON   bool
		snapName string
	)
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Replay a YAML edit script and print the resulting model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := loadScript(args[0])
			if err != nil {
				return err
			}
			ed, err := newEditor()
			if err != nil {
				return err
			}
			defer ed.Close()

			results, runErr := runScript(ed, script)
			if !asJSON {
				printResults(script, results)
			}
			if runErr != nil {
				return runErr
			}

			snap := ed.Snapshot()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(snap); err != nil {
					return err
				}
			} else {
				fmt.Println()
				printModel(snap)
			}

			if save {
				name := snapName
				if name == "" {
					name = script.Name
				}
				rec, err := saveSnapshot(cmd.Context(), name, snap)
				if err != nil {
					return err
				}
				if !asJSON {
					fmt.Printf("\n  %s saved %s (revision %d) to %s\n", statusIcon(true), rec.ID, rec.Revision, dbPath)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Save the final model to the snapshot database")
	cmd.Flags().StringVar(&snapName, "name", "", "Snapshot name (defaults to the script name)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the final model as JSON")
	return cmd
}

func printResults(script *Script, results []StepResult) {
	title := script.Name
	if title == "" {
		title = "script"
	}
	fmt.Printf("%s %s — %d steps\n\n", brand.Sprint("replay"), title, len(script.Steps))

	for _, r := range results {
		fmt.Printf("  %s %2d  %-24s %s\n", statusIcon(r.Err == nil), r.Index, r.Label,
			subtle.Sprintf("applied %d, %d nodes, %d elements", r.Applied, r.Nodes, r.Elements))
		if r.Err != nil {
			for _, line := range strings.Split(r.Err.Error(), "\n") {
				warn.Printf("       %s\n", line)
			}
		}
	}
}

func printModel(snap model.Snapshot) {
	names := make(map[string]int, len(snap.Nodes))

	fmt.Printf("%s %d\n", brand.Sprint("nodes"), len(snap.Nodes))
	rows := make([][]string, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		names[n.ID] = n.Name
		rows = append(rows, []string{strconv.Itoa(n.Name), formatFloat(n.X), formatFloat(n.Y), n.ID})
	}
	table([]string{"NAME", "X", "Y", "ID"}, rows)

	fmt.Printf("\n%s %d\n", brand.Sprint("elements"), len(snap.Elements))
	rows = rows[:0]
	for _, e := range snap.Elements {
		rows = append(rows, []string{
			fmt.Sprintf("%d → %d", names[e.NodeA], names[e.NodeB]),
			e.ID,
		})
	}
	table([]string{"NODES", "ID"}, rows)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func saveSnapshot(ctx context.Context, name string, snap model.Snapshot) (*store.Record, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Save(ctx, name, snap)
}

func sampleCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print the built-in sample truss",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := model.SampleSnapshot()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printModel(snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func showCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [snapshot-id]",
		Short: "Print a stored snapshot (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var rec *store.Record
			if len(args) == 1 {
				rec, err = st.Get(cmd.Context(), args[0])
			} else {
				rec, err = st.Latest(cmd.Context())
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			fmt.Printf("%s %s  %s\n\n", brand.Sprint(rec.ID), subtle.Sprintf("revision %d", rec.Revision), rec.Name)
			printModel(rec.Snapshot)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func snapshotsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list))
			for _, s := range list {
				rows = append(rows, []string{
					strconv.FormatInt(s.Revision, 10),
					s.Name,
					strconv.Itoa(s.Nodes),
					strconv.Itoa(s.Elements),
					s.CreatedAt.Local().Format(time.DateTime),
					s.ID,
				})
			}
			table([]string{"REV", "NAME", "NODES", "ELEMENTS", "CREATED", "ID"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of snapshots")
	return cmd
}

func settingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the effective editor settings as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(settingsFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(settings)
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for PASSWORD_HASH",
		Long:  "Print a bcrypt hash for PASSWORD_HASH. Without an argument the password is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
