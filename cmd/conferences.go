package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var conferencesCmd = &cobra.Command{
	Use:   "conferences",
	Short: "Inspect stored conferences",
}

var conferencesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conferences with duration and summary",
	RunE:  runConferencesList,
}

var conferencesDeleteCmd = &cobra.Command{
	Use:   "delete <conference-id>",
	Short: "Delete a conference, its recordings and transcript index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runConferencesDelete,
}

func init() {
	conferencesCmd.AddCommand(conferencesListCmd, conferencesDeleteCmd)
	rootCmd.AddCommand(conferencesCmd)
}

func runConferencesList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitError("failed to load config", err)
	}
	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return exitError("failed to build application", err)
	}
	defer a.Close()

	list, err := a.conferences.ListAll(cmd.Context())
	if err != nil {
		return exitError("failed to list conferences", err)
	}
	if len(list) == 0 {
		cmd.Println("No conferences.")
		return nil
	}
	for _, c := range list {
		cmd.Printf("%s  %s  %-3s  %3d segments  %s\n",
			c.ID, c.Date.Format("2006-01-02 15:04"), c.Language, c.SegmentCount, c.Duration)
		cmd.Printf("    %s\n", strings.ReplaceAll(strings.TrimSpace(c.Summary), "\n", "\n    "))
	}
	return nil
}

func runConferencesDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitError("failed to load config", err)
	}
	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return exitError("failed to build application", err)
	}
	defer a.Close()

	if err := a.conferences.Delete(cmd.Context(), args[0]); err != nil {
		return exitError("failed to delete conference", err)
	}
	cmd.Printf("Deleted conference %s\n", args[0])
	return nil
}
