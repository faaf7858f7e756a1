package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/birdayz/streamc/pkg/log"
)

// GlobalOptions are the persistent flags of every command.
type GlobalOptions struct {
	LogFormat string
	Debug     bool
}

// Logger builds the logger selected by the flags.
func (o *GlobalOptions) Logger(cmd *cobra.Command) (*slog.Logger, error) {
	level := slog.LevelInfo
	if o.Debug {
		level = slog.LevelDebug
	}
	return log.NewSlog(o.LogFormat, level, cmd.ErrOrStderr())
}

func NewRootCommand() *cobra.Command {
	var opts GlobalOptions
	cmd := &cobra.Command{
		Use:           "streamc",
		Short:         "Compile stream processing applications into physical topologies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", log.FormatAuto, "Log format. One of: (auto | console | json)")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Set log level to debug")

	cmd.AddCommand(NewCompileCommand(&opts))
	return cmd
}

func Execute() error {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		color.NoColor = true
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("Error:"), err)
		return err
	}
	return nil
}
