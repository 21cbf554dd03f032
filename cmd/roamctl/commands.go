package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rmia46/roam-mc-server-manager/internal/models"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

func newRootCmd() *cobra.Command {
	var address string
	client := func() *apiClient { return newAPIClient(address) }

	rootCmd := &cobra.Command{
		Use:           "roamctl",
		Short:         "Control a Roam Minecraft server manager daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	defaultAddr := os.Getenv("ROAM_ADDRESS")
	if defaultAddr == "" {
		defaultAddr = defaultAddress
	}
	rootCmd.PersistentFlags().StringVar(&address, "address", defaultAddr, "daemon address (env ROAM_ADDRESS)")

	rootCmd.AddCommand(
		newConfigCmd(client),
		newStartCmd(client),
		newStopCmd(client),
		newStatsCmd(client),
		newSendCmd(client),
		newWorldsCmd(client),
		newBackupCmd(client),
		newPlayersCmd(client),
		newLogsCmd(client),
	)
	return rootCmd
}

func newConfigCmd(client func() *apiClient) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or set the server launch configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current launch configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Config *server.ServerConfig `json:"config"`
			}
			if err := client().do(http.MethodGet, "/api/v1/server/config", nil, &resp); err != nil {
				return err
			}
			if resp.Config == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No server configured")
				return nil
			}
			return printJSON(cmd, resp.Config)
		},
	}

	var cfg server.ServerConfig
	var name string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Set the server directory, jar and heap sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("name") {
				cfg.Name = &name
			}
			var resp struct {
				Config server.ServerConfig `json:"config"`
			}
			if err := client().do(http.MethodPut, "/api/v1/server/config", cfg, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configured %s (%s, -Xms%s -Xmx%s)\n",
				resp.Config.DisplayName(), resp.Config.JarName, resp.Config.MinRAM, resp.Config.MaxRAM)
			return nil
		},
	}
	setCmd.Flags().StringVar(&cfg.Path, "path", "", "server directory")
	setCmd.Flags().StringVar(&cfg.JarName, "jar", "server.jar", "server jar inside the directory")
	setCmd.Flags().StringVar(&cfg.MinRAM, "min-ram", "", "initial heap size, e.g. 1G")
	setCmd.Flags().StringVar(&cfg.MaxRAM, "max-ram", "", "maximum heap size, e.g. 4G")
	setCmd.Flags().StringVar(&name, "name", "", "display name")
	_ = setCmd.MarkFlagRequired("path")

	configCmd.AddCommand(showCmd, setCmd)
	return configCmd
}

func newStartCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Status string `json:"status"`
			}
			if err := client().do(http.MethodPost, "/api/v1/server/start", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server launched (%s)\n", resp.Status)
			return nil
		},
	}
}

func newStopCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the server, including one not started by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp models.StopResponse
			if err := client().do(http.MethodPost, "/api/v1/server/stop", nil, &resp); err != nil {
				return err
			}
			if resp.Stopped {
				fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No server was running")
			}
			return nil
		},
	}
}

func newStatsCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show status, CPU, memory and player count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats server.ServerStats
			if err := client().do(http.MethodGet, "/api/v1/server/stats", nil, &stats); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Status:\t%s\n", stats.Status)
			fmt.Fprintf(w, "CPU:\t%.1f%%\n", stats.CPU)
			fmt.Fprintf(w, "Memory:\t%.1f MiB\n", float64(stats.Memory)/(1<<20))
			fmt.Fprintf(w, "Players:\t%d\n", stats.PlayerCount)
			return w.Flush()
		},
	}
}

func newSendCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "send <command...>",
		Short: "Send a console command to the running server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.CommandRequest{Command: strings.Join(args, " ")}
			if err := client().do(http.MethodPost, "/api/v1/server/command", req, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent: %s\n", req.Command)
			return nil
		},
	}
}

func newWorldsCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "worlds",
		Short: "List worlds in the server directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Worlds    []models.WorldInfo `json:"worlds"`
				LevelName string             `json:"level_name"`
			}
			if err := client().do(http.MethodGet, "/api/v1/server/worlds", nil, &resp); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE (MiB)\tMODIFIED\t")
			for _, world := range resp.Worlds {
				marker := ""
				if world.Name == resp.LevelName {
					marker = "*"
				}
				fmt.Fprintf(w, "%s%s\t%.1f\t%s\t\n", world.Name, marker, world.SizeMB, world.LastModified)
			}
			return w.Flush()
		},
	}
}

func newBackupCmd(client func() *apiClient) *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup <world>",
		Short: "Archive a world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var created models.Backup
			req := models.CreateBackupRequest{World: args[0]}
			if err := client().do(http.MethodPost, "/api/v1/server/backups", req, &created); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup %s written to %s (%d bytes)\n", created.ID, created.Location, created.Size)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Backups []models.Backup `json:"backups"`
			}
			if err := client().do(http.MethodGet, "/api/v1/server/backups", nil, &resp); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWORLD\tSTATUS\tORIGIN\tCREATED\t")
			for _, b := range resp.Backups {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", b.ID, b.World, b.Status, b.Origin, b.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().do(http.MethodDelete, "/api/v1/server/backups/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	backupCmd.AddCommand(listCmd, deleteCmd)
	return backupCmd
}

func newPlayersCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "Show per-player statistics for the active world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Players []models.PlayerInfo `json:"players"`
			}
			if err := client().do(http.MethodGet, "/api/v1/server/players", nil, &resp); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tHOURS\tSTEPS\t")
			for _, p := range resp.Players {
				fmt.Fprintf(w, "%s\t%.1f\t%d\t\n", p.Name, p.TimePlayed, p.Steps)
			}
			return w.Flush()
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogsCmd(client func() *apiClient) *cobra.Command {
	var lines int
	var errorsOnly bool
	var grep string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent server console output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			query.Set("lines", fmt.Sprint(lines))
			switch {
			case errorsOnly:
				query.Set("filter", "errors")
			case grep != "":
				query.Set("filter", "search")
				query.Set("q", grep)
			}

			var resp struct {
				Lines []string `json:"lines"`
			}
			if err := client().do(http.MethodGet, "/api/v1/server/console?"+query.Encode(), nil, &resp); err != nil {
				return err
			}
			for _, line := range resp.Lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 200, "number of lines")
	cmd.Flags().BoolVar(&errorsOnly, "errors", false, "only warnings and errors")
	cmd.Flags().StringVar(&grep, "grep", "", "only lines containing this text")
	return cmd
}
