package main

import (
	"bytes"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/raphi011/gitgrip/internal/config"
	"github.com/raphi011/gitgrip/internal/output"
	"github.com/raphi011/gitgrip/internal/workspace"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Manage configuration",
		Aliases: []string{"cfg"},
		GroupID: GroupConfig,
		Long: `Manage gr configuration.

User config:      ~/.config/gitgrip/config.toml (or $GITGRIP_CONFIG)
Workspace config: .gitgrip/config.toml in the workspace root`,
		Example: `  gr config init          # Create default user config
  gr config show          # Show effective config`,
	}

	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force  bool
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default config file",
		Args:  cobra.NoArgs,
		Example: `  gr config init      # Create user config
  gr config init -f   # Overwrite existing config
  gr config init -s   # Print config to stdout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := output.FromContext(cmd.Context())
			if stdout {
				_, err := p.Writer().Write([]byte(config.DefaultContent()))
				return err
			}
			path, err := config.Init(force)
			if err != nil {
				return err
			}
			if p.JSONMode() {
				return p.JSON(map[string]string{"path": path})
			}
			p.Printf("Created config file: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config")
	cmd.Flags().BoolVarP(&stdout, "stdout", "s", false, "Print config to stdout")

	return cmd
}

// configOutput is the JSON form of "gr config show".
type configOutput struct {
	UserConfig      string            `json:"userConfig,omitempty"`
	WorkspaceConfig string            `json:"workspaceConfig,omitempty"`
	Parallel        bool              `json:"parallel"`
	Jobs            int               `json:"jobs"`
	CacheTTL        string            `json:"cacheTtl"`
	MergeMethod     string            `json:"mergeMethod"`
	PullMode        string            `json:"pullMode"`
	Nerdfont        bool              `json:"nerdfont"`
	Hosts           map[string]string `json:"hosts,omitempty"`
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		Long: `Show the effective configuration: the user config merged with the
workspace config when run inside a workspace.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			p := output.FromContext(ctx)

			userPath, _ := config.Path()
			var localPath string
			if ws, err := workspace.Find(workDir); err == nil {
				localPath = filepath.Join(ws.MainRoot, config.LocalConfigPath)
				if !fileExists(localPath) {
					localPath = ""
				}
			}
			if !fileExists(userPath) {
				userPath = ""
			}

			if p.JSONMode() {
				return p.JSON(configOutput{
					UserConfig:      userPath,
					WorkspaceConfig: localPath,
					Parallel:        cfg.Parallel,
					Jobs:            cfg.Jobs,
					CacheTTL:        cfg.CacheTTL.String(),
					MergeMethod:     cfg.Merge.Method,
					PullMode:        cfg.Pull.Mode,
					Nerdfont:        cfg.UI.Nerdfont,
					Hosts:           cfg.Hosts,
				})
			}

			if userPath != "" {
				p.Printf("# user config: %s\n", userPath)
			}
			if localPath != "" {
				p.Printf("# workspace config: %s\n", localPath)
			}
			p.Printf("# cache_ttl = %q\n", cfg.CacheTTL.String())
			var buf bytes.Buffer
			if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
				return err
			}
			p.Print(buf.String())
			return nil
		},
	}
}
