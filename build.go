package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/thiremani/nitro/cache"
	"github.com/thiremani/nitro/compiler"
	"github.com/thiremani/nitro/jit"
	"golang.org/x/sync/errgroup"
)

const (
	keepBuilds = 5
	pruneAge   = 7 * 24 * time.Hour
)

var buildCmd = &cobra.Command{
	Use:   "build FILE...",
	Short: "Compile declaration files into the build cache",
	Long: `build compiles every file in parallel, loads each module natively to check
that every accessor links, and stores the IR in the build cache. Files whose
contents are already cached are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "files compiled in parallel")
	buildCmd.Flags().Bool("force", false, "rebuild even when cached")
}

type buildResult struct {
	path   string
	dir    string
	cached bool
	err    error
}

func runBuild(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("cache")
	opt, _ := cmd.Flags().GetUint("opt")
	jobs, _ := cmd.Flags().GetInt("jobs")
	force, _ := cmd.Flags().GetBool("force")
	if jobs < 1 {
		jobs = 1
	}

	bc, err := cache.Open(dir)
	if err != nil {
		return err
	}

	results := make([]buildResult, len(args))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(context.Background())
	g.SetLimit(min(jobs, len(args)))
	for i, path := range args {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := buildFile(bc, path, opt, force)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var errs []error
	for _, r := range results {
		switch {
		case r.err != nil:
			fmt.Fprintf(out, "%s %s\n", color.RedString("FAIL"), r.err)
			errs = append(errs, r.err)
		case r.cached:
			fmt.Fprintf(out, "%s %s -> %s\n", color.CyanString("CACHED"), r.path, r.dir)
		default:
			fmt.Fprintf(out, "%s %s -> %s\n", color.GreenString("OK"), r.path, r.dir)
		}
	}

	removed, err := bc.Prune(keepBuilds, pruneAge)
	if err != nil {
		slog.Warn("prune build cache", "err", err)
	}
	for _, d := range removed {
		slog.Debug("pruned", "dir", d)
	}
	return errors.Join(errs...)
}

// buildKey covers everything that shapes the artifacts: the source, the
// compiler release and the optimization level.
func buildKey(source []byte, opt uint) cache.Key {
	return cache.NewKey(source, []byte(Version), []byte(fmt.Sprint(opt)))
}

func buildFile(bc *cache.Cache, path string, opt uint, force bool) buildResult {
	source, err := os.ReadFile(path)
	if err != nil {
		return buildResult{path: path, err: err}
	}
	key := buildKey(source, opt)
	if !force {
		if _, ok, err := bc.Load(key); err != nil {
			slog.Warn("read build cache", "file", path, "err", err)
		} else if ok {
			return buildResult{path: path, dir: bc.Dir(key), cached: true}
		}
	}

	ir, names, err := compileFile(path, func(c *compiler.Compiler) error {
		return loadNative(c, opt)
	})
	if err != nil {
		return buildResult{path: path, err: err}
	}

	artifact := moduleName(path) + IR_SUFFIX
	m := &cache.Manifest{
		Source:    filepath.Base(path),
		Artifacts: []string{artifact},
		Types:     names,
	}
	if err := bc.Store(key, m, map[string][]byte{artifact: []byte(ir)}); err != nil {
		return buildResult{path: path, err: err}
	}
	return buildResult{path: path, dir: bc.Dir(key)}
}

// loadNative hands the module to the JIT and resolves every function, which
// fails if any accessor does not link.
func loadNative(c *compiler.Compiler, opt uint) error {
	en, err := jit.New(c, jit.WithOptLevel(opt))
	if err != nil {
		return err
	}
	defer en.Dispose()
	for name := range c.Funcs {
		addr, err := en.Address(name)
		if err != nil {
			return err
		}
		if addr == 0 {
			return fmt.Errorf("%w: %s has no native address", jit.ErrUnknownFunc, name)
		}
	}
	return nil
}
