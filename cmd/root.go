package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd(open opener, stdout, stderr io.Writer) *cobra.Command {
	var (
		envFile string
		a       *app
	)
	current := func() *app { return a }

	root := &cobra.Command{
		Use:           "study-assistant",
		Short:         "Turn PDFs into summaries, quizzes and flashcards",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opened, err := open(cmd.Context(), envFile, stdout, stderr)
			if err != nil {
				return err
			}
			a = opened
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.Close()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	defaultEnvFile := os.Getenv("ENV_FILE")
	if defaultEnvFile == "" {
		defaultEnvFile = ".env"
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before reading the environment (ENV_FILE)")

	root.AddCommand(
		newServeCmd(current),
		newSubmitCmd(current),
		newWaitCmd(current),
		newStatusCmd(current),
		newListCmd(current),
		newRecentCmd(current),
		newDeleteCmd(current),
		newExportCmd(current),
	)
	return root
}
