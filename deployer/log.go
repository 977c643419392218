package deployer

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

const (
	LogFormatTerminal = "terminal"
	LogFormatLogfmt   = "logfmt"
	LogFormatJSON     = "json"
)

type LogConfig struct {
	Level  slog.Level
	Format string
	Color  bool
}

func (c LogConfig) Check() error {
	switch c.Format {
	case LogFormatTerminal, LogFormatLogfmt, LogFormatJSON:
		return nil
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
}

func ReadLogConfig(cliCtx *cli.Context) (LogConfig, error) {
	lvl, err := log.LvlFromString(strings.ToLower(cliCtx.String(LogLevelFlagName)))
	if err != nil {
		return LogConfig{}, fmt.Errorf("invalid log level: %w", err)
	}
	cfg := LogConfig{
		Level:  lvl,
		Format: cliCtx.String(LogFormatFlagName),
		Color:  cliCtx.Bool(LogColorFlagName),
	}
	if err := cfg.Check(); err != nil {
		return LogConfig{}, err
	}
	return cfg, nil
}

// NewLogger builds the process logger. Diagnostics go to w, which the CLI
// points at stderr so stdout stays free for results.
func NewLogger(w io.Writer, cfg LogConfig) log.Logger {
	var h slog.Handler
	switch cfg.Format {
	case LogFormatJSON:
		h = log.JSONHandlerWithLevel(w, cfg.Level)
	case LogFormatLogfmt:
		h = log.LogfmtHandlerWithLevel(w, cfg.Level)
	default:
		h = log.NewTerminalHandlerWithLevel(w, cfg.Level, cfg.Color)
	}
	return log.NewLogger(h)
}
