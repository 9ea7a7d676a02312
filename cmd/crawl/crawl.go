// ABOUTME: Drives the sequential walker or the parallel engine for the crawl command
// ABOUTME: Prints each listing and a humanized summary

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/2389/storage-agent/internal/config"
	"github.com/2389/storage-agent/internal/walk"
)

func crawlParallel(ctx context.Context, newClient func() (walk.Lister, error), cfg *config.Config, logger *slog.Logger, out *printer) (walk.Stats, error) {
	engine, err := walk.NewEngine(walk.Options{
		Workers:   cfg.Crawl.Workers,
		NewClient: newClient,
		Dedupe:    cfg.Crawl.Dedupe,
		Logger:    logger,
	})
	if err != nil {
		return walk.Stats{}, err
	}

	tr, err := engine.Walk(ctx, cfg.Crawl.Root)
	if err != nil {
		return walk.Stats{}, err
	}
	defer tr.Close()

	// Results keep draining after ctrl-c so in-flight listings are reported.
	for res := range tr.All(context.Background()) {
		out.result(res)
	}
	return tr.Stats(), nil
}

func crawlSequential(ctx context.Context, newClient func() (walk.Lister, error), root string, logger *slog.Logger, out *printer) (walk.Stats, error) {
	client, err := newClient()
	if err != nil {
		return walk.Stats{}, err
	}

	start := time.Now()
	st := walk.Stats{Root: path.Clean(root)}
	for res := range walk.NewSequential(client, logger).Walk(ctx, root) {
		out.result(res)
		if res.OK() {
			st.Listed++
		} else {
			st.Failed++
		}
	}
	st.Elapsed = time.Since(start)
	st.Finished = true
	st.Aborted = ctx.Err() != nil
	return st, nil
}

type printer struct {
	out   io.Writer
	errw  io.Writer
	quiet bool
	red   *color.Color

	files int
}

func newPrinter(out, errw io.Writer, quiet bool) *printer {
	return &printer{
		out:   out,
		errw:  errw,
		quiet: quiet,
		red:   color.New(color.FgRed),
	}
}

func (p *printer) result(res walk.Result) {
	if !res.OK() {
		p.red.Fprintf(p.errw, "%s: %v\n", res.Path, res.Err)
		return
	}
	p.files += len(res.Files)
	if p.quiet {
		return
	}
	dir := res.Path
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	fmt.Fprintln(p.out, dir)
	for _, f := range res.Files {
		fmt.Fprintln(p.out, path.Join(res.Path, f))
	}
}

func (p *printer) summary(st walk.Stats, agents, workers int) {
	elapsed := st.Elapsed.Round(time.Millisecond)
	rate := 0.0
	if secs := st.Elapsed.Seconds(); secs > 0 {
		rate = float64(st.Results()) / secs
	}

	green := color.New(color.FgGreen)
	green.Fprint(p.errw, "▶ ")
	fmt.Fprintf(p.errw, "%s directories, %s files in %s (%s dirs/s) across %d %s with %d %s\n",
		humanize.Comma(int64(st.Listed)),
		humanize.Comma(int64(p.files)),
		elapsed,
		humanize.FtoaWithDigits(rate, 1),
		agents, plural(agents, "agent"),
		workers, plural(workers, "worker"),
	)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
