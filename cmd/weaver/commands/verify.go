package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-weaver/pkg/verify"
)

// VerifyOutput represents the output of the verify command
type VerifyOutput struct {
	Assembly string          `json:"assembly"`
	Methods  int             `json:"methods"`
	Problems []VerifyProblem `json:"problems,omitempty"`
}

// VerifyProblem is one structural defect
type VerifyProblem struct {
	Method      string `json:"method"`
	Instruction int    `json:"instruction"`
	Message     string `json:"message"`
}

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [container]",
	Short: "Check the structure of every method body",
	Long: `Checks that branch targets, exception regions, variables and parameters
belong to the body using them, that operands fit their opcodes and that every
referenced type, field and method resolves against the references.`,
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
		jsonOutput, _ := cmd.Flags().GetBool("json")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		return runVerify(cmd.Context(), s, path, jsonOutput, concurrency)
	},
}

func init() {
	verifyCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	verifyCmd.Flags().Int("concurrency", 0, "Methods checked at once (default: GOMAXPROCS)")
}

func runVerify(ctx context.Context, s *session, path string, jsonOutput bool, concurrency int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	asm, u, err := s.load(ctx, path)
	if err != nil {
		return err
	}
	report, err := verify.Assembly(ctx, asm, u, verify.WithConcurrency(concurrency))
	if err != nil {
		return err
	}

	if jsonOutput {
		out := VerifyOutput{Assembly: asm.Name, Methods: report.Methods}
		for _, p := range report.Problems {
			out.Problems = append(out.Problems, VerifyProblem{
				Method:      p.Method,
				Instruction: p.Instruction,
				Message:     p.Message,
			})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, string(data))
		if !report.OK() {
			return verify.ErrInvalid
		}
		return nil
	}

	if report.OK() {
		fmt.Fprintf(s.out, "%s: %d methods verified\n", asm.Name, report.Methods)
		return nil
	}
	return report.Err()
}
