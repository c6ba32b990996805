package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/chatflow/internal/cli"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the engine in the terminal",
	Long: `Starts an interactive conversation. Replies are rendered as markdown when
stdin is a terminal; piped input is processed line by line in plain mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Logs would interleave with the conversation, so they stay off unless asked for.
		logger := logging.NewNop()
		if cmd.Flags().Changed("log-level") {
			if logger, err = newLogger(cfg); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := cli.NewRuntime(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		user, _ := cmd.Flags().GetString("user")
		plain, _ := cmd.Flags().GetBool("plain")
		verbose, _ := cmd.Flags().GetBool("verbose")

		return cli.NewChat(rt.Engine, os.Stdin, os.Stdout, cli.ChatOptions{
			UserID:  user,
			Plain:   plain,
			Verbose: verbose,
		}).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("user", "u", "local", "User id of the conversation")
	chatCmd.Flags().Bool("plain", false, "Disable the banner and markdown rendering")
	chatCmd.Flags().BoolP("verbose", "v", false, "Print intent, confidence and quality after each reply")
}
