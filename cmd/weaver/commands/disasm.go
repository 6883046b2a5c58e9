package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-weaver/pkg/container"
	"github.com/l3aro/go-weaver/pkg/il"
)

// disasmCmd represents the disasm command
var disasmCmd = &cobra.Command{
	Use:   "disasm [container]",
	Short: "Print a text listing of a container",
	Long: `Prints the metadata and method bodies of a container. With --method only
the bodies of the matching methods are printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		path, err := s.inputPath(args)
		if err != nil {
			return err
		}
		method, _ := cmd.Flags().GetString("method")
		return runDisasm(s, path, method)
	},
}

func init() {
	disasmCmd.Flags().StringP("method", "m", "", "Only print Ns.Type::Method")
}

func runDisasm(s *session, path, method string) error {
	asm, err := container.Load(path)
	if err != nil {
		return err
	}
	if method == "" {
		fmt.Fprint(s.out, il.Disassemble(asm))
		return nil
	}

	typeName, name, ok := strings.Cut(method, "::")
	if !ok {
		return fmt.Errorf("method %q is not Type::Method", method)
	}
	t := asm.FindType(typeName)
	if t == nil {
		return fmt.Errorf("type %s not found in %s", typeName, asm.Name)
	}
	methods := t.FindMethods(name)
	if len(methods) == 0 {
		return fmt.Errorf("method %s not found on %s", name, typeName)
	}
	for _, m := range methods {
		fmt.Fprint(s.out, il.DisassembleMethod(m))
	}
	return nil
}
