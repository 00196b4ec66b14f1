// Package watch streams newly generated sessions from a shared archive to a
// terminal or a JSON consumer.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/hctorder/internal/archive"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is one human-readable line per session.
	OutputFormatDefault OutputFormat = "default"
	// OutputFormatJSON is line-delimited JSON.
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, "":
		return OutputFormatDefault, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

// Source delivers session events; *archive.Subscription implements it.
type Source interface {
	Events() <-chan *archive.Entry
	Errors() <-chan error
}

type eventFormatter interface {
	FormatSession(e *archive.Entry) error
}

type defaultFormatter struct {
	writer io.Writer
	loc    *time.Location
}

func (f *defaultFormatter) FormatSession(e *archive.Entry) error {
	ts := time.UnixMilli(e.GeneratedAtMs).In(f.loc).Format("15:04:05")
	_, err := fmt.Fprintf(f.writer, "[%s] 🫀 Session generated: id=%s order=%s lab=%s experimenter=%q session=%s",
		ts, e.ParticipantID, e.HCTOrder, orDash(e.LabNumber), e.Experimenter, e.SessionID)
	if err != nil {
		return err
	}
	if e.Host != "" {
		if _, err := fmt.Fprintf(f.writer, " host=%s", e.Host); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(f.writer)
	return err
}

type jsonFormatter struct {
	writer io.Writer
}

func (f *jsonFormatter) FormatSession(e *archive.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}
	_, err = fmt.Fprintf(f.writer, "%s\n", data)
	return err
}

func newFormatter(w io.Writer, format OutputFormat, loc *time.Location) eventFormatter {
	if format == OutputFormatJSON {
		return &jsonFormatter{writer: w}
	}
	if loc == nil {
		loc = time.Local
	}
	return &defaultFormatter{writer: w, loc: loc}
}

// StreamSessions writes every event from src to w until ctx is cancelled or
// src closes. Undecodable events are logged and skipped. Returns the number
// of sessions written.
func StreamSessions(ctx context.Context, src Source, w io.Writer, format OutputFormat, loc *time.Location, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	formatter := newFormatter(w, format, loc)
	errs := src.Errors()
	count := 0

	for {
		select {
		case <-ctx.Done():
			return count, nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("skipping session event", zap.Error(err))
		case e, ok := <-src.Events():
			if !ok {
				return count, nil
			}
			if err := formatter.FormatSession(e); err != nil {
				return count, fmt.Errorf("failed to write session event: %w", err)
			}
			count++
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
