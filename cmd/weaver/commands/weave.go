package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-weaver/internal/config"
	"github.com/l3aro/go-weaver/internal/scanner"
	"github.com/l3aro/go-weaver/pkg/dirty"
	"github.com/l3aro/go-weaver/pkg/verify"
	"github.com/l3aro/go-weaver/pkg/weave"
	"github.com/l3aro/go-weaver/pkg/weave/mixin"
)

// weaveCmd represents the weave command
var weaveCmd = &cobra.Command{
	Use:   "weave [flags]",
	Short: "Weave the configured input container",
	Long: `Loads the input container and every container found under the reference
directories, runs the registered weaves and the configured advice, verifies
the result and writes it to the output (the input itself by default).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetString("input"); v != "" {
			s.cfg.Input = v
		}
		if v, _ := cmd.Flags().GetString("output"); v != "" {
			s.cfg.Output = v
		}
		if v, _ := cmd.Flags().GetString("weaver-config"); v != "" {
			s.cfg.WeaverConfig = v
		}
		if err := s.cfg.Validate(); err != nil {
			return err
		}
		skipVerify, _ := cmd.Flags().GetBool("skip-verify")
		force, _ := cmd.Flags().GetBool("force")
		return runWeave(cmd.Context(), s, weaveOptions{verify: !skipVerify, force: force})
	},
}

func init() {
	weaveCmd.Flags().StringP("input", "i", "", "Input container (overrides config)")
	weaveCmd.Flags().StringP("output", "o", "", "Output container (overrides config)")
	weaveCmd.Flags().String("weaver-config", "", "Weaver XML config (overrides config)")
	weaveCmd.Flags().Bool("skip-verify", false, "Write the output without verifying it")
	weaveCmd.Flags().BoolP("force", "f", false, "Weave even when the output is up to date")
}

type weaveOptions struct {
	verify bool
	force  bool
}

func runWeave(ctx context.Context, s *session, opts weaveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	input, err := s.inputPath(nil)
	if err != nil {
		return err
	}
	output := s.cfg.OutputPath()
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}

	weaverCfg, err := loadWeaverConfig(s)
	if err != nil {
		return err
	}

	// everything the run reads decides whether it can be skipped
	inputs := []string{input}
	if _, err := os.Stat(s.cfg.WeaverConfig); s.cfg.WeaverConfig != "" && err == nil {
		inputs = append(inputs, s.cfg.WeaverConfig)
	}
	refs, err := scanner.FindReferences(s.cfg.ReferenceDirs, scanner.WithExclude(input, output))
	if err != nil {
		return fmt.Errorf("finding references: %w", err)
	}
	for _, f := range refs {
		inputs = append(inputs, f.FullPath)
	}
	tracker, err := dirty.Open(dirty.WithStateFile(s.statePath))
	if err != nil {
		return err
	}
	if !opts.force {
		upToDate, err := tracker.UpToDateContext(ctx, output, inputs...)
		if err != nil {
			return err
		}
		if upToDate {
			s.log.Info("up to date", "output", output)
			return nil
		}
	}

	asm, u, err := s.load(ctx, input, output)
	if err != nil {
		return err
	}

	registry, err := weave.NewRegistry(mixin.New())
	if err != nil {
		return err
	}
	wctx := &weave.Context{
		Resolver: u,
		Logger:   s.log,
		Registry: registry,
		Config:   weaverCfg,
	}
	if err := weave.Execute(wctx, asm); err != nil {
		return fmt.Errorf("weaving %s: %w", asm.Name, err)
	}

	if opts.verify {
		report, err := verify.Assembly(ctx, asm, u, verify.WithLogger(s.log))
		if err != nil {
			return err
		}
		if err := report.Err(); err != nil {
			return err
		}
	}

	if err := s.save(output, asm, info.Size()); err != nil {
		return err
	}
	s.log.Info("written", "assembly", asm.Name, "path", output)

	if err := tracker.Record(output, inputs...); err != nil {
		return err
	}
	return tracker.Save()
}

// loadWeaverConfig reads the configured weaver element. A missing file at
// the default location means an empty configuration.
func loadWeaverConfig(s *session) (*weave.Config, error) {
	path := s.cfg.WeaverConfig
	if path == "" {
		return &weave.Config{}, nil
	}
	cfg, err := config.LoadWeaverConfig(path)
	if errors.Is(err, fs.ErrNotExist) && path == config.DefaultConfig().WeaverConfig {
		s.log.Debug("no weaver config", "path", path)
		return &weave.Config{}, nil
	}
	return cfg, err
}
