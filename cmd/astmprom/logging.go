package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"calmh.dev/astmprom/astm"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// levelSuccess sits between info and warn so it is shown at the default
// level.
const levelSuccess = slog.LevelInfo + 2

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == levelSuccess {
					return slog.String(slog.LevelKey, "SUC")
				}
			}
			return a
		},
	}))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func slogLevel(l astm.Level) slog.Level {
	switch l {
	case astm.LevelWarning:
		return slog.LevelWarn
	case astm.LevelError:
		return slog.LevelError
	case astm.LevelSuccess:
		return levelSuccess
	default:
		return slog.LevelInfo
	}
}

// logMessage writes the operator events of a received message.
func logMessage(ctx context.Context, l *slog.Logger, rec *received) {
	for _, ev := range rec.Events() {
		l.Log(ctx, slogLevel(ev.Level), ev.Text, "category", ev.Category, "id", rec.ID, "session", rec.Session)
	}
}
