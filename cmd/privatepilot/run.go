package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"privatepilot/internal/actions"
	"privatepilot/internal/pilot"
	"privatepilot/internal/typing"
)

var (
	inputFile string
	language  string
	question  string
	typeOut   bool
)

var runCmd = &cobra.Command{
	Use:   "run <action>",
	Short: "Run an editor action on code read from --file or stdin.",
	Long: `Run one editor action. Selection actions (improve, explain, fix-typos, write-comments, review)
operate on the code given; cursor actions (auto-comment, create-code, ask) use it as context.
Run "privatepilot actions" to list them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := readInput(cmd.InOrStdin(), inputFile)
		if err != nil {
			return err
		}
		return generate(cmd.Context(), cmd.OutOrStdout(), pilot.Request{
			Action: args[0],
			Input:  actions.Input{Code: code, Language: language, Question: question},
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addGenerateFlags(runCmd)
	runCmd.Flags().StringVarP(&question, "question", "q", "", "question or instruction for cursor actions")
}

func addGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "read code from this file instead of stdin")
	cmd.Flags().StringVarP(&language, "language", "l", "", "language of the code, e.g. go or python")
	cmd.Flags().BoolVar(&typeOut, "type", false, "print the result progressively like the editor does")
}

// generate runs req and prints the resulting text.
func generate(ctx context.Context, out io.Writer, req pilot.Request) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if req.Input.Language == "" && inputFile != "" {
		req.Input.Language = languageFromPath(inputFile)
	}

	res, err := a.service.Generate(ctx, req)
	if err != nil {
		return err
	}
	if typeOut {
		tw := typing.Typewriter{Delay: cfg.Typing.Delay, Chunk: cfg.Typing.Chunk}
		if err := tw.Type(ctx, out, res.Text); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out)
		return err
	}
	_, err = fmt.Fprintln(out, res.Text)
	return err
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(b), nil
	}
	if f, ok := stdin.(*os.File); ok {
		if st, err := f.Stat(); err == nil && st.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

var extLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cs":   "csharp",
	".rb":   "ruby",
	".php":  "php",
	".sh":   "bash",
	".sql":  "sql",
}

func languageFromPath(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return extLanguages[strings.ToLower(path[i:])]
	}
	return ""
}
