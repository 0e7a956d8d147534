// Package merge implements merge and outline subcommands: talking books given
// on command line are loaded in order and combined into a single package.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dtbm/dtb"
	"dtbm/ncc"
	"dtbm/state"
	"dtbm/utils/debug"
)

// Run merges all sources into destination directory.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("merge")

	if cmd.Args().Len() < 2 {
		return errors.New("at least one source and destination have to be specified")
	}
	args := cmd.Args().Slice()
	sources, err := absPaths(args[:len(args)-1])
	if err != nil {
		return err
	}
	dst, err := filepath.Abs(args[len(args)-1])
	if err != nil {
		return err
	}
	env.Overwrite = cmd.Bool("overwrite")

	log.Info("Processing starting", zap.Strings("sources", sources), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, env, sources, dst, ncc.FFProbe{Binary: env.Cfg.Source.FFProbe}, log)
}

// Outline prints merge units found in sources without producing anything.
func Outline(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("outline")

	if cmd.Args().Len() == 0 {
		return errors.New("no input source has been specified")
	}
	sources, err := absPaths(cmd.Args().Slice())
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, env.CleanWorkDir())
	}()
	units, err := load(ctx, env, sources, ncc.FFProbe{Binary: env.Cfg.Source.FFProbe}, log)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.Root().Writer, debug.Outline(units...))
	return err
}

func process(ctx context.Context, env *state.LocalEnv, sources []string, dst string, prober ncc.Prober, log *zap.Logger) (err error) {
	if err := checkDestination(dst, env.Overwrite); err != nil {
		return err
	}
	for _, src := range sources {
		if within(src, dst) {
			return fmt.Errorf("source %s is inside destination %s, it would be removed", src, dst)
		}
	}

	// extracted archives are read while saving
	defer func() {
		err = multierr.Append(err, env.CleanWorkDir())
	}()
	units, err := load(ctx, env, sources, prober, log)
	if err != nil {
		return err
	}
	if within(env.WorkDir, dst) {
		return fmt.Errorf("work directory %s is inside destination %s", env.WorkDir, dst)
	}

	book, err := dtb.NewBuilder(units, log, dtb.WithGenerator(env.Cfg.Builder.Generator)).Build()
	if err != nil {
		return fmt.Errorf("unable to merge: %w", err)
	}
	if tmpl := env.Cfg.Builder.Title; len(tmpl) > 0 {
		title, err := retitle(book, units, tmpl)
		if err != nil {
			return err
		}
		log.Debug("Book title set", zap.String("title", title))
	}
	if env.Rpt != nil {
		if data, err := book.Navigation.WriteToBytes(); err == nil {
			env.Rpt.StoreData(dtb.NavigationDocumentName, data)
		}
	}

	opts := dtb.SaveOptions{AllowedFileEndAudio: env.Cfg.Builder.AllowedFileEndAudio}
	if err := dtb.Save(ctx, book, dst, opts, log); err != nil {
		return fmt.Errorf("unable to save merged book: %w", err)
	}
	log.Info("Merged book",
		zap.Int("units", len(book.Timing)),
		zap.String("total time", dtb.FormatHHMMSS(book.Stats.TotalTime)),
		zap.String("destination", dst))
	return nil
}

func load(ctx context.Context, env *state.LocalEnv, sources []string, prober ncc.Prober, log *zap.Logger) ([]dtb.Unit, error) {
	workDir, err := env.PrepareWorkDir()
	if err != nil {
		return nil, err
	}
	books, err := ncc.DiscoverAll(ctx, sources, workDir, log)
	if err != nil {
		return nil, err
	}
	units, err := ncc.NewLoader(prober, log).Load(ctx, books...)
	if err != nil {
		return nil, fmt.Errorf("unable to load sources: %w", err)
	}
	if env.Rpt != nil {
		env.Rpt.StoreData("outline.txt", []byte(debug.Outline(units...)))
	}
	return units, nil
}

// checkDestination refuses to clear directory with something in it unless
// overwrite was requested.
func checkDestination(dst string, overwrite bool) error {
	fi, err := os.Stat(dst)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to access destination: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("destination %s is not a directory", dst)
	}
	entries, err := os.ReadDir(dst)
	if err != nil {
		return fmt.Errorf("unable to read destination: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("destination %s is not empty, use --overwrite to replace its content", dst)
	}
	return nil
}

// within reports if path is dir or somewhere under it.
func within(path, dir string) bool {
	if len(path) == 0 {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func absPaths(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, p := range in {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}
