package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/manifest"
	"github.com/raphi011/gitgrip/internal/output"
)

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "manifest",
		Short:   "Work with the workspace manifest",
		GroupID: GroupConfig,
		Example: `  gr manifest sync
  gr manifest validate
  gr manifest schema > gitgrip.schema.json`,
	}

	cmd.AddCommand(newManifestSyncCmd(), newManifestValidateCmd(), newManifestSchemaCmd())
	return cmd
}

func newManifestSyncCmd() *cobra.Command {
	var rebase bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull the manifest repo and re-apply links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)
			if _, ok := s.manifestRepo(); !ok {
				p.Println("Manifest is not a git repository; nothing to pull")
				return nil
			}
			if err := s.pullManifest(ctx, pullMode(s.cfg.Pull.Mode, rebase)); err != nil {
				return err
			}
			return applyLinks(ctx, s)
		},
	}

	cmd.Flags().BoolVar(&rebase, "rebase", false, "Rebase instead of merging")

	return cmd
}

func newManifestValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest against its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(s.ws.ManifestPath)
			if err != nil {
				return err
			}
			p := output.FromContext(ctx)
			verr := manifest.ValidateSchema(data)
			if p.JSONMode() {
				out := map[string]any{"path": s.ws.ManifestPath, "valid": verr == nil}
				if verr != nil {
					out["error"] = verr.Error()
				}
				if err := p.JSON(out); err != nil {
					return err
				}
				if verr != nil {
					return errFailed
				}
				return nil
			}
			if verr != nil {
				return verr
			}
			p.Printf("%s is valid (%s)\n", s.ws.ManifestPath, plural(len(s.m.Repos), "repo"))
			return nil
		},
	}
}

func newManifestSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the manifest JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := manifest.Schema()
			if err != nil {
				return err
			}
			w := output.FromContext(cmd.Context()).Writer()
			if _, err := w.Write(data); err != nil {
				return err
			}
			_, err = w.Write([]byte("\n"))
			return err
		},
	}
}
