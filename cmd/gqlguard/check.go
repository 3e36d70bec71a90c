package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	depthlimit "github.com/hanpama/gqlguard/internal/depthlimit"
	language "github.com/hanpama/gqlguard/internal/language"
	pipeline "github.com/hanpama/gqlguard/internal/pipeline"
	validation "github.com/hanpama/gqlguard/internal/validation"
)

func (a *app) checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "check [flags] FILE...",
		Short:   "check validates query documents against the schema and limits",
		Example: "gqlguard check --schema schema.graphql --limits.depth 5 queries/*.graphql",
		Args:    cobra.MinimumNArgs(1),
		RunE:    a.runCheck,
	}
	addLimitFlags(cmd.Flags())
	return cmd
}

type checkResult struct {
	file   string
	errs   language.ErrorList
	depths map[string]int
}

func (a *app) runCheck(cmd *cobra.Command, files []string) error {
	cfg, err := a.load(cmd)
	if err != nil {
		return err
	}
	logger, flush, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer flush()

	ctx := context.Background()
	sch, err := loadSchema(ctx, cfg, logger)
	if err != nil {
		return err
	}
	p := pipeline.New(sch)
	ignore, err := cfg.Limits.ShouldIgnore()
	if err != nil {
		return err
	}
	maxDepth := cfg.Limits.Depth
	if maxDepth <= 0 {
		maxDepth = math.MaxInt32
	}

	results := make([]checkResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		g.Go(func() error {
			source, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			results[i] = checkDocument(gctx, p, file, string(source), maxDepth, ignore)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	problems := 0
	for _, res := range results {
		problems += len(res.errs)
		printResult(cmd.OutOrStdout(), res)
	}
	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	return nil
}

// checkDocument validates source and measures the depth of each operation.
func checkDocument(ctx context.Context, p *pipeline.Pipeline, file, source string, maxDepth int, ignore depthlimit.ShouldIgnore) checkResult {
	res := checkResult{file: file}
	doc, errs := p.Validate(ctx, source)
	res.errs = errs
	if doc == nil {
		return res
	}
	measure := depthlimit.NewRule(maxDepth, ignore, func(depths map[string]int) { res.depths = depths })
	validation.Validate(ctx, nil, doc, measure)
	return res
}

func printResult(w io.Writer, res checkResult) {
	for _, e := range res.errs {
		if len(e.Locations) > 0 {
			fmt.Fprintf(w, "%s:%d:%d: %s\n", res.file, e.Locations[0].Line, e.Locations[0].Column, e.Message)
		} else {
			fmt.Fprintf(w, "%s: %s\n", res.file, e.Message)
		}
	}
	names := make([]string, 0, len(res.depths))
	for name := range res.depths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: operation %s has depth %d\n", res.file, name, res.depths[name])
	}
}
