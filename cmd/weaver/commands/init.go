package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-weaver/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .weaver/config.yaml and a weaver config interactively",
	Long: `Guides you through the project configuration: the container to weave,
where to write the result, where referenced containers live and how much to
log. Writes .weaver/config.yaml and, when missing, an empty weaver config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		force, _ := cmd.Flags().GetBool("force")
		cfg := config.DefaultConfig()
		if v, _ := cmd.Flags().GetString("input"); v != "" {
			cfg.Input = v
		}
		if !yes {
			if err := promptConfig(cfg); err != nil {
				return err
			}
		}
		return runInit(cmd.OutOrStdout(), cfg, config.ProjectConfigFile, force)
	},
}

func init() {
	initCmd.Flags().BoolP("yes", "y", false, "Accept the defaults without prompting")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing project config")
	initCmd.Flags().String("input", "", "Input container")
}

func promptConfig(cfg *config.Config) error {
	refs := strings.Join(cfg.ReferenceDirs, ",")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Input container").
				Description("The assembly container to weave").
				Placeholder("bin/App.wvc").
				Value(&cfg.Input).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("input is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Output container (optional, press Enter to weave in place)").
				Placeholder("optional").
				Value(&cfg.Output),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Reference directories").
				Description("Comma separated directories searched for referenced containers").
				Placeholder(".").
				Value(&refs),
			huh.NewInput().
				Title("Weaver config").
				Placeholder("weaver.xml").
				Value(&cfg.WeaverConfig),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Keep debug symbols in the output?").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.DebugSymbols),
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&cfg.LogLevel),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.ReferenceDirs = nil
	for _, dir := range strings.Split(refs, ",") {
		if dir = strings.TrimSpace(dir); dir != "" {
			cfg.ReferenceDirs = append(cfg.ReferenceDirs, dir)
		}
	}
	if len(cfg.ReferenceDirs) == 0 {
		cfg.ReferenceDirs = []string{"."}
	}
	return nil
}

func runInit(out io.Writer, cfg *config.Config, path string, force bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Configuration saved to %s\n", path)

	if cfg.WeaverConfig == "" {
		return nil
	}
	weaverPath := cfg.WeaverConfig
	if !filepath.IsAbs(weaverPath) {
		// relative to the project root, which holds .weaver/
		weaverPath = filepath.Join(filepath.Dir(filepath.Dir(path)), weaverPath)
	}
	if _, err := os.Stat(weaverPath); !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	f, err := os.Create(weaverPath)
	if err != nil {
		return fmt.Errorf("failed to create weaver config: %w", err)
	}
	if err := config.WriteWeaverElement(f, &config.WeaverConfig{}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Weaver config written to %s\n", weaverPath)
	return nil
}
