package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"eviction_intake_go/config"
	"eviction_intake_go/models"
	"eviction_intake_go/services"
	"eviction_intake_go/services/contentstore"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
)

// newRootCmd builds the operator CLI. Every command talks to the store
// selected by cfg, overridable with --backend.
func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "intake-cli",
		Short:         "Operate the Houston County eviction intake store",
		Long:          "intake-cli submits cases, inspects the case index and manages the remote store used by the intake service.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("backend", "", "store backend (github, r2, local, memory); defaults to STORE_BACKEND")
	rootCmd.PersistentFlags().String("dir", "", "directory for the local backend; defaults to LOCAL_STORE_DIR")

	rootCmd.AddCommand(submitCmd(cfg))
	rootCmd.AddCommand(indexCmd(cfg))
	rootCmd.AddCommand(provisionCmd(cfg))
	rootCmd.AddCommand(statusCmd(cfg))
	rootCmd.AddCommand(hashTokenCmd())
	return rootCmd
}

// synchronizerFor builds a synchronizer over the configured store
func synchronizerFor(cmd *cobra.Command, cfg *config.Config) (*services.CaseSynchronizer, error) {
	storeCfg := *cfg
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		storeCfg.StoreBackend = strings.ToLower(backend)
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		storeCfg.LocalStoreDir = dir
	}
	if storeCfg.StoreTimeout <= 0 {
		storeCfg.StoreTimeout = config.DefaultStoreTimeout
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := contentstore.NewFromConfig(cmd.Context(), &storeCfg, logger)
	if err != nil {
		return nil, err
	}
	return services.NewCaseSynchronizer(store, nil, services.SyncConfig{
		IndexAttempts: storeCfg.IndexRetryAttempts,
		IndexBackoff:  storeCfg.IndexRetryBase,
	}), nil
}

// readCase accepts either an intake body ({caseId, data}) or a stored
// case_data.json record
func readCase(r io.Reader) (*models.Case, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		CaseID   string          `json:"caseId"`
		Data     json.RawMessage `json:"data"`
		FormData json.RawMessage `json:"formData"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("invalid case file: %w", err)
	}

	payload := raw
	if len(envelope.Data) > 0 {
		payload = envelope.Data
	} else if len(envelope.FormData) > 0 {
		payload = envelope.FormData
	}

	var kase models.Case
	if err := json.Unmarshal(payload, &kase); err != nil {
		return nil, fmt.Errorf("invalid case data: %w", err)
	}
	if envelope.CaseID != "" {
		kase.ID = envelope.CaseID
	}
	if err := services.NormalizeCase(&kase); err != nil {
		return nil, err
	}
	return &kase, nil
}

func submitCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "submit [case.json]",
		Short: "Synchronize a case file to the store",
		Long:  "Reads an intake body or a case_data.json record (\"-\" for stdin) and writes the case files and index entry.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open case file: %w", err)
				}
				defer f.Close()
				in = f
			}

			kase, err := readCase(in)
			if err != nil {
				return err
			}
			if kase.SubmittedAt == nil {
				now := time.Now().UTC()
				kase.SubmittedAt = &now
			}

			syncer, err := synchronizerFor(cmd, cfg)
			if err != nil {
				return err
			}

			result, syncErr := syncer.Synchronize(cmd.Context(), kase, nil)
			out := cmd.OutOrStdout()
			if result != nil {
				for _, f := range result.Files {
					if f.Success {
						fmt.Fprintf(out, "%s %s\n", okMark, f.Path)
					} else {
						fmt.Fprintf(out, "%s %s: %s\n", failMark, f.Path, f.Error)
					}
				}
			}
			if syncErr != nil {
				return fmt.Errorf("failed to synchronize case %s: %w", kase.ID, syncErr)
			}
			fmt.Fprintf(out, "Case %s synchronized (index attempts: %d)\n%s\n", kase.ID, result.IndexAttempts, result.Location)
			return nil
		},
	}
}

func indexCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "List the case index",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, err := synchronizerFor(cmd, cfg)
			if err != nil {
				return err
			}

			index, _, err := syncer.ReadIndex(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read case index: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(index.Cases) == 0 {
				fmt.Fprintln(out, "No cases found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CASE\tSTATUS\tLANDLORD\tTENANT\tPROPERTY\tSUBMITTED")
			for _, e := range index.Cases {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CaseID, e.Status, e.Landlord, e.Tenant, e.Property, e.Submitted.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func provisionCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the backing repository or bucket if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, err := synchronizerFor(cmd, cfg)
			if err != nil {
				return err
			}

			store := syncer.Store()
			if err := store.Provision(cmd.Context()); err != nil {
				return fmt.Errorf("failed to provision %s store: %w", store.Name(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s store ready at %s\n", okMark, store.Name(), store.Location(services.CasesRoot+"/"))
			return nil
		},
	}
}

func statusCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [case-id] [status]",
		Short: "Change the status of a stored case",
		Long:  "Valid statuses: " + strings.Join(models.CaseStatuses(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, _ := cmd.Flags().GetString("number")
			notes, _ := cmd.Flags().GetString("notes")

			syncer, err := synchronizerFor(cmd, cfg)
			if err != nil {
				return err
			}

			updated, err := syncer.UpdateStatus(cmd.Context(), args[0], services.StatusUpdate{
				Status:             strings.ToLower(args[1]),
				OfficialCaseNumber: number,
				ClerkNotes:         notes,
			})
			if err != nil {
				return fmt.Errorf("failed to update case %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Case %s is now %s\n", okMark, updated.ID, updated.Status)
			return nil
		},
	}
	cmd.Flags().String("number", "", "official case number assigned by the court")
	cmd.Flags().String("notes", "", "clerk notes")
	return cmd
}

func hashTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-token",
		Short: "Generate a dashboard token and its ADMIN_TOKEN_HASH",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, _ := cmd.Flags().GetBool("prompt")
			out := cmd.OutOrStdout()

			var token string
			if prompt {
				// Read the token securely
				fmt.Fprint(out, "Token: ")
				tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Fprintln(out)
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
				token = strings.TrimSpace(string(tokenBytes))
				if token == "" {
					return fmt.Errorf("token must not be empty")
				}
			} else {
				generated, err := services.GenerateAdminToken()
				if err != nil {
					return err
				}
				token = generated
				fmt.Fprintf(out, "Token:           %s\n", token)
			}

			hash, err := services.HashAdminToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ADMIN_TOKEN_HASH=%s\n", hash)
			return nil
		},
	}
	cmd.Flags().Bool("prompt", false, "read the token from the terminal instead of generating one")
	return cmd
}
