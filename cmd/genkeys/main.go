// Command genkeys writes the credential file the web app logs users in
// against. Passwords are bcrypt-hashed; the file is overwritten atomically.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/chequescan/internal/adapter/driven/credfile"
	"github.com/ericfisherdev/chequescan/internal/application"
	"github.com/ericfisherdev/chequescan/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		out  string
		cost int
	)

	cmd := &cobra.Command{
		Use:   "genkeys",
		Short: "Generate the hashed credential file for chequescan",
		Long: `genkeys hashes the built-in user passwords with bcrypt and writes
the credential file read by the chequescan server. An existing file is
replaced. The output path defaults to CHEQUESCAN_CREDENTIALS_PATH.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("out") {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				out = cfg.CredentialsPath
			}
			if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
				return fmt.Errorf("--cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
			}
			return run(cmd, out, cost)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "hashed_pw.json", "credential file to write")
	cmd.Flags().IntVar(&cost, "cost", application.DefaultBcryptCost, "bcrypt cost")

	return cmd
}

func run(cmd *cobra.Command, out string, cost int) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	store := credfile.NewStore(out)
	boot := application.NewBootstrapper(application.BcryptHasher{Cost: cost}, logger)

	file, err := boot.Run(cmd.Context(), application.DefaultUsers, store)
	if err != nil {
		return err
	}

	return report(cmd.OutOrStdout(), store.Path(), len(file.Usernames))
}

// report prints usernames only; hashes and plaintexts are never echoed.
func report(w io.Writer, path string, count int) error {
	if _, err := fmt.Fprintf(w, "wrote %d users to %s\n", count, path); err != nil {
		return err
	}
	for _, u := range application.DefaultUsers {
		if _, err := fmt.Fprintf(w, "  %s\n", u.Username); err != nil {
			return err
		}
	}
	return nil
}
