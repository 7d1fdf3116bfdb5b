package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	c "framechat/cmd/cli/command/client"
	"framechat/internal/config"
	"framechat/internal/pipeline"
)

var connectCmd = &cobra.Command{
	Use:   "connect <host> <port>",
	Short: "Join the chat room of a server",
	Long: `Prompts for a display name, registers it with the server and then sends
each stdin line (at most 512 bytes, longer lines are cut) as a chat message.
End of input closes the connection.`,
	Args: cobra.ExactArgs(2),
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	host, port := args[0], args[1]
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	cfg := &config.Config{LogLevel: logLevel, LogFormat: "text"}
	logger := cfg.NewLogger(cmd.ErrOrStderr())

	fmt.Fprint(out, "Your name: ")
	name, err := c.ReadName(in)
	if err != nil {
		return fmt.Errorf("failed to read name: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	useColor := !noColor && !color.NoColor
	chat, err := c.Dial(ctx, host, port, c.NewPrinter(out, useColor), logger)
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- chat.Run(ctx) }()

	chat.Register(name)
	go func() {
		if err := c.PumpLines(in, chat); err != nil {
			logger.Warn("stdin_read_failed", "error", err)
		}
		chat.Close()
	}()

	return connectionResult(<-runErr, logger)
}

// connectionResult maps the close cause of the client connection to the command result.
func connectionResult(err error, logger *slog.Logger) error {
	switch {
	case err == nil,
		errors.Is(err, pipeline.ErrClosed),
		errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, io.EOF):
		logger.Info("server_closed_connection")
		return nil
	default:
		return fmt.Errorf("connection lost: %w", err)
	}
}
