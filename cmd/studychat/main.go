package main

import (
	"fmt"
	"os"

	"github.com/pmartins/studychat/internal/app"
	"github.com/pmartins/studychat/internal/config"
	"github.com/pmartins/studychat/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	var sessionFlag string

	root := &cobra.Command{
		Use:          "studychat",
		Short:        "Conversation sync engine for the learning platform chat",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")

	root.AddCommand(runCmd(&sessionFlag), initCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd(sessionFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the engine in the foreground",
		RunE: func(_ *cobra.Command, _ []string) error {
			name := session.Resolve(*sessionFlag)
			if err := session.ValidateName(name); err != nil {
				return err
			}

			fxApp := fx.New(
				app.Module(app.Params{SessionName: name}),
			)
			fxApp.Run()
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config.toml",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := session.ConfigPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			cfg := &config.Config{DefaultSession: session.DefaultSessionName}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}
