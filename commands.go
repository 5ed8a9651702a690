package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrisuehlinger/invalidator/config"
	"github.com/chrisuehlinger/invalidator/css"
	"github.com/chrisuehlinger/invalidator/dom"
	"github.com/chrisuehlinger/invalidator/metrics"
	"github.com/chrisuehlinger/invalidator/script"
	"github.com/chrisuehlinger/invalidator/style"
)

// loadSheets reads and parses files concurrently. The result is in
// argument order. Rules that fail to parse are dropped with a warning.
func loadSheets(ctx context.Context, log *zap.Logger, files []string) ([]*css.StyleSheet, error) {
	sheets := make([]*css.StyleSheet, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(name)
			if err != nil {
				return fmt.Errorf("unable to read stylesheet: %w", err)
			}
			sheet, err := css.ParseStyleSheet(string(data), css.OriginAuthor)
			if sheet == nil {
				return fmt.Errorf("unable to parse %s: %w", name, err)
			}
			if err != nil {
				log.Warn("Dropped invalid rules", zap.String("file", name), zap.Error(err))
			}
			sheets[i] = sheet
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sheets, nil
}

func runFeatures(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	if cmd.NArg() == 0 {
		return fmt.Errorf("no stylesheets given")
	}
	sheets, err := loadSheets(ctx, e.log, cmd.Args().Slice())
	if err != nil {
		return err
	}

	opts := e.cfg.Invalidation.FeatureSetOptions()
	features := css.NewRuleFeatureSet(opts, e.log)
	for _, sheet := range sheets {
		features.Merge(css.NewRuleSetFromSheet(sheet, opts, e.log).Features())
	}
	if cmd.Bool("tree") {
		fmt.Fprint(cmd.Root().Writer, features.Dump())
	} else {
		fmt.Fprintln(cmd.Root().Writer, features.String())
	}
	return nil
}

func runReplay(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)

	html, err := os.ReadFile(cmd.String("html"))
	if err != nil {
		return fmt.Errorf("unable to read document: %w", err)
	}
	src, err := os.ReadFile(cmd.String("script"))
	if err != nil {
		return fmt.Errorf("unable to read script: %w", err)
	}
	extra, err := loadSheets(ctx, e.log, cmd.StringSlice("css"))
	if err != nil {
		return err
	}
	doc, err := dom.ParseHTMLString(string(html))
	if err != nil {
		return fmt.Errorf("unable to parse document: %w", err)
	}

	reg := prometheus.NewRegistry()
	opts := e.cfg.EngineOptions()
	opts.Metrics = metrics.NewPrometheusCollector(reg)
	engine := style.NewEngine(doc, opts, e.log)
	defer engine.Close()
	for i, sheet := range extra {
		engine.InjectAuthorSheet(fmt.Sprintf("css-%d", i), sheet)
	}

	out := cmd.Root().Writer
	pass := 0
	report := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		recalced := engine.UpdateStyleAndLayoutTree()
		names := make([]string, 0, recalced.GetCardinality())
		for _, v := range recalced.ToArray() {
			names = append(names, doc.Describe(dom.NodeID(v)))
		}
		fmt.Fprintf(out, "update %d: %d element(s)\n", pass, len(names))
		for _, n := range names {
			fmt.Fprintf(out, "  %s\n", n)
		}
		pass++
		return nil
	}

	if err := report(); err != nil {
		return err
	}
	rt := script.NewRuntime(doc, e.log)
	rt.SetOnFlush(report)
	if err := rt.Run(cmd.String("script"), string(src)); err != nil {
		return err
	}
	if engine.NeedsStyleRecalc() || engine.NeedsActiveStyleUpdate() || !engine.PendingInvalidations().IsEmpty() {
		if err := report(); err != nil {
			return err
		}
	}

	if cmd.Bool("metrics") {
		return printMetrics(out, reg)
	}
	return nil
}

func printMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("unable to gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			slices.Sort(labels)
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(out, "%s %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(out, "%s count=%d sum=%gs\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	if cmd.Args().Len() > 1 {
		e.log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := cmd.Root().Writer
	if len(fname) > 0 {
		f, err := os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer f.Close()
		out = f
	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(e.cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	e.log.Debug("Outputting configuration", zap.String("state", state), zap.String("file", fname))

	if _, err = out.Write(data); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
