package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/VaultAI/internal/intake"
	"github.com/dharsanguruparan/VaultAI/internal/mint"
	"github.com/dharsanguruparan/VaultAI/internal/model"
	"github.com/dharsanguruparan/VaultAI/internal/storage"
	"github.com/dharsanguruparan/VaultAI/internal/verification"
	"github.com/dharsanguruparan/VaultAI/internal/wizard"
)

type submitOptions struct {
	assetType   string
	name        string
	description string
	owner       string
	verifyDelay time.Duration
	mintDelay   time.Duration
}

func newSubmitCmd() *cobra.Command {
	var opts submitOptions
	cmd := &cobra.Command{
		Use:   "submit --type TYPE --name NAME --description TEXT FILE...",
		Short: "Run the vault wizard end to end in-process",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.assetType, "type", "", "Asset type (see asset-types)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Asset name")
	cmd.Flags().StringVar(&opts.description, "description", "", "Asset description")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "Owner address recorded on the asset")
	cmd.Flags().DurationVar(&opts.verifyDelay, "verify-delay", 250*time.Millisecond, "Simulated verification latency")
	cmd.Flags().DurationVar(&opts.mintDelay, "mint-delay", 250*time.Millisecond, "Simulated mint latency")
	return cmd
}

func runSubmit(cmd *cobra.Command, opts submitOptions, paths []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	candidates, err := loadCandidates(paths)
	if err != nil {
		return err
	}
	assets := storage.NewMemoryStore()
	files := storage.NewMemoryFiles()
	sess := wizard.NewSession(uuid.NewString(), opts.owner, wizard.Deps{
		Verifier: verification.NewSimulator(verification.WithDelay(opts.verifyDelay)),
		Minter:   mint.NewSimulator(opts.mintDelay),
	})
	defer sess.Discard()

	if err := sess.SetAssetType(opts.assetType); err != nil && !errors.Is(err, wizard.ErrValidation) {
		return err
	}
	if err := sess.SetAssetName(opts.name); err != nil {
		return err
	}
	if err := sess.SetAssetDescription(opts.description); err != nil {
		return err
	}
	if _, err := sess.Advance(); err != nil {
		printFieldErrors(out, sess.Snapshot().Draft.Errors)
		return fmt.Errorf("details: %w", err)
	}

	outcome, err := sess.AddFiles(ctx, candidates)
	if err != nil {
		return err
	}
	for _, f := range outcome.Accepted {
		fmt.Fprintf(out, "accepted  %s (%s, %d bytes)\n", f.Name, f.MimeType, f.SizeBytes)
	}
	for _, r := range outcome.Rejected {
		fmt.Fprintf(out, "rejected  %s: %s\n", r.Name, r.Reason)
	}

	fmt.Fprintln(out, "verifying...")
	verified, err := sess.Verify(ctx)
	if err != nil {
		printFieldErrors(out, sess.Snapshot().Draft.Errors)
		return fmt.Errorf("verify: %w", err)
	}
	fmt.Fprintf(out, "score     %d (%s)\n", verified.Score, verified.Status)

	fmt.Fprintln(out, "minting...")
	minted, err := sess.Mint(ctx)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	fmt.Fprintf(out, "token     %s\ntx        %s\nuri       %s\n", minted.TokenID, minted.TransactionReference, minted.TokenURI)

	rec, err := sess.Finalize(ctx, files, assets)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func loadCandidates(paths []string) ([]intake.Candidate, error) {
	out := make([]intake.Candidate, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		out = append(out, intake.Candidate{
			Name:     filepath.Base(p),
			MimeType: intake.SniffMIME(mime.TypeByExtension(filepath.Ext(p)), head),
			Size:     int64(len(data)),
			Content:  bytes.NewReader(data),
		})
	}
	return out, nil
}

func printFieldErrors(w io.Writer, errs map[string]string) {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "%s: %s\n", f, errs[f])
	}
}

func newAssetTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "asset-types",
		Short: "List the asset types a vault can hold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, t := range model.AssetTypes {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Name, t.Description)
			}
			return tw.Flush()
		},
	}
}
