package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/thiremani/nitro/cache"
	"github.com/thiremani/nitro/compiler"
	"github.com/thiremani/nitro/decl"
	"golang.org/x/term"
	"tinygo.org/x/go-llvm"
)

const IR_SUFFIX = ".ll"

var rootCmd = &cobra.Command{
	Use:   "nitro",
	Short: "Typed aggregate accessors compiled to native code",
	Long: `nitro reads type declarations (pointers, arrays, slices, structures and
vectors) from TOML or YAML files and emits C-ABI accessor functions for them
as LLVM IR.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		switch mode, _ := cmd.Flags().GetString("color"); mode {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		default:
			color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("cache", cache.DefaultDir(), "build cache directory (overrides $"+cache.EnvVar+")")
	rootCmd.PersistentFlags().Uint("opt", 2, "optimization level of the native load check in build")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log progress to stderr")

	rootCmd.AddCommand(irCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(versionCmd)
}

var irCmd = &cobra.Command{
	Use:   "ir FILE...",
	Short: "Print the accessor IR of declaration files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIR,
}

func runIR(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		ir, _, err := compileFile(path, nil)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ir)
	}
	return nil
}

// compileFile loads, resolves and compiles one declaration file in a fresh
// context. It returns the verified IR and the declared type names. When check
// is non-nil it runs on the compiled module after the IR is taken.
func compileFile(path string, check func(*compiler.Compiler) error) (string, []string, error) {
	f, err := decl.Load(path)
	if err != nil {
		return "", nil, err
	}
	set, err := decl.Resolve(f)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}

	ctx := llvm.NewContext()
	defer ctx.Dispose()

	c := compiler.NewCompiler(ctx, moduleName(path))
	defer c.Dispose()
	if err := c.GenerateAccessors(set.Named()); err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Verify(); err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("compiled", "file", path, "types", len(set.Names()), "funcs", len(c.Funcs))
	ir := c.GenerateIR()
	if check != nil {
		if err := check(c); err != nil {
			return "", nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return ir, set.Names(), nil
}

func moduleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
