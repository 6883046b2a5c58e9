package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-weaver/internal/config"
	"github.com/l3aro/go-weaver/internal/log"
	"github.com/l3aro/go-weaver/internal/scanner"
	"github.com/l3aro/go-weaver/pkg/container"
	"github.com/l3aro/go-weaver/pkg/dirty"
	"github.com/l3aro/go-weaver/pkg/il"
)

// session carries what every command needs: the project configuration, a
// logger and the output stream.
type session struct {
	cfg *config.Config
	log log.Logger
	out io.Writer

	// progress draws spinners on stderr while loading and saving
	progress bool
	// statePath is the run state file deciding whether weaving can be skipped
	statePath string
}

func newSession(cmd *cobra.Command) (*session, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if cmd.Flags().Changed("json-logs") {
		cfg.JSONLogs, _ = cmd.Flags().GetBool("json-logs")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.New(log.LoggerConfig{
		Level:      cfg.Level(),
		JSONOutput: cfg.JSONLogs,
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
	})
	return &session{
		cfg:       cfg,
		log:       logger,
		out:       cmd.OutOrStdout(),
		progress:  log.IsTTY() && !cfg.JSONLogs,
		statePath: dirty.DefaultStateFile,
	}, nil
}

// inputPath returns the container named on the command line, or the
// configured input.
func (s *session) inputPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if s.cfg.Input == "" {
		return "", fmt.Errorf("no input container: pass one or set input in %s", config.ProjectConfigFile)
	}
	return s.cfg.Input, nil
}

// load reads the container at path and a universe holding it together with
// every reference container. Containers at the exclude paths are not
// treated as references.
func (s *session) load(ctx context.Context, path string, exclude ...string) (*il.Assembly, *il.Universe, error) {
	var spinner *log.ProgressSpinner
	if s.progress {
		spinner = log.NewProgressSpinner("Loading references...")
		spinner.Start()
		defer spinner.Stop()
	}

	u, err := scanner.LoadReferences(ctx, s.cfg.ReferenceDirs,
		scanner.WithExclude(append(exclude, path)...),
		scanner.WithReferenceLogger(s.log),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("loading references: %w", err)
	}

	if spinner != nil {
		spinner.Message("Loading " + path + "...")
	}
	asm, err := container.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if _, shadowed := u.Assembly(asm.Name); shadowed {
		s.log.Warn("input replaces a reference of the same name", "assembly", asm.Name)
	}
	u.Add(asm)
	s.log.Debug("loaded", "assembly", asm.Name, "references", len(u.Assemblies())-1)
	return asm, u, nil
}

// save writes asm to path. estimate is the expected size in bytes, used to
// report progress.
func (s *session) save(path string, asm *il.Assembly, estimate int64) error {
	opts := container.WithDebugSymbols(s.cfg.DebugSymbols)
	if !s.progress {
		return container.Save(path, asm, opts)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	pw := log.NewProgressWriter(f, estimate, "Writing "+path+"...")
	bw := bufio.NewWriter(pw)
	err = container.Write(bw, asm, opts)
	if err == nil {
		err = bw.Flush()
	}
	pw.Close()
	if err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
