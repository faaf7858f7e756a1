package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/birdayz/streamc"
	"github.com/birdayz/streamc/internal/appdesc"
	"github.com/birdayz/streamc/internal/output"
	"github.com/birdayz/streamc/internal/publish"
	"github.com/birdayz/streamc/kconfig"
	"github.com/birdayz/streamc/ktopology"
)

type CompileOptions struct {
	Config      string
	OutDir      string
	Watch       bool
	Publish     bool
	MetricsAddr string
}

func NewCompileCommand(global *GlobalOptions) *cobra.Command {
	var opts CompileOptions
	cmd := &cobra.Command{
		Use:   "compile <app.yaml>...",
		Short: "Compile application descriptions",
		Long: "Compile one or more application descriptions into physical topologies.\n\n" +
			"Each topology is written as JSON to --out, or to stdout if --out is not set.\n" +
			"With --watch the applications are recompiled whenever the config file changes.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := global.Logger(cmd)
			if err != nil {
				return err
			}
			return RunCompile(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), log, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "Path to the submission config")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "Directory to write topologies to")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Recompile when the config changes (requires --config)")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "Publish topologies to the Kafka topic of the config")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while watching")
	return cmd
}

func RunCompile(ctx context.Context, stdout, stderr io.Writer, log *slog.Logger, opts CompileOptions, files []string) error {
	if opts.Watch && opts.Config == "" {
		return errors.New("--watch requires --config")
	}

	cfg := &kconfig.Config{}
	var loader *kconfig.Loader
	if opts.Config != "" {
		var err error
		loader, err = kconfig.NewLoader(opts.Config, log.WithGroup("config"))
		if err != nil {
			return err
		}
		cfg = loader.Config()
	}

	var pub *publish.Publisher
	if opts.Publish {
		if !cfg.Publish.Enabled() {
			return errors.New("--publish requires publish.brokers and publish.topic in the config")
		}
		var err error
		pub, err = publish.New(cfg.Publish.Brokers, cfg.Publish.Topic, publish.WithLog(log.WithGroup("publish")))
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.EnsureTopic(ctx, cfg.Publish.Partitions, cfg.Publish.Replicas); err != nil {
			return err
		}
	}

	var dir *output.Dir
	if opts.OutDir != "" {
		dir = output.NewDir(opts.OutDir)
	}

	run := func(cfg *kconfig.Config) error {
		topos, err := compileAll(log, cfg, files)
		if err != nil {
			return err
		}
		for i, topo := range topos {
			if err := write(stdout, dir, topo); err != nil {
				return err
			}
			if pub != nil {
				if err := pub.Publish(ctx, topo); err != nil {
					return err
				}
			}
			summarize(stderr, files[i], topo)
		}
		return nil
	}

	if err := run(cfg); err != nil {
		return err
	}
	if !opts.Watch {
		return nil
	}

	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	log.Info("Watching config", "path", opts.Config)
	return loader.Watch(ctx, func(cfg *kconfig.Config) {
		if err := run(cfg); err != nil {
			log.Error("Recompilation failed", "error", err)
		}
	})
}

// compileAll compiles every file concurrently, each on its own graph.
func compileAll(log *slog.Logger, cfg *kconfig.Config, files []string) ([]*ktopology.Topology, error) {
	c := streamc.New(streamc.WithLog(log), streamc.WithConfig(cfg), streamc.WithMetrics(true))
	topos := make([]*ktopology.Topology, len(files))
	var eg errgroup.Group
	for i, file := range files {
		eg.Go(func() error {
			g, err := appdesc.Load(file)
			if err != nil {
				return err
			}
			topo, err := c.Compile(g)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			topos[i] = topo
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return topos, nil
}

func write(stdout io.Writer, dir *output.Dir, topo *ktopology.Topology) error {
	if dir == nil {
		return output.Encode(stdout, topo)
	}
	return dir.Write(topo)
}

func summarize(w io.Writer, file string, topo *ktopology.Topology) {
	var regions []string
	for _, r := range topo.ParallelRegions {
		regions = append(regions, fmt.Sprintf("%s×%d", r.Name, r.Width))
	}
	fmt.Fprintf(w, "%s %s (%s): %d nodes, %d connections, %d consistent regions",
		color.GreenString("Compiled"), color.New(color.Bold).Sprint(topo.Name), file,
		len(topo.Nodes), len(topo.Connections), len(topo.ConsistentRegions))
	if len(regions) > 0 {
		fmt.Fprintf(w, ", parallel %s", strings.Join(regions, " "))
	}
	fmt.Fprintln(w)
}
