// Package downloader walks a catalog and hands every file to a sink.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"motorcycle-manuals/internal/catalog"
	"motorcycle-manuals/internal/sink"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("motorcycle.internal.downloader")
var meter = otel.Meter("motorcycle.internal.downloader")

var storedCounter, _ = meter.Int64Counter(
	"manuals.stored",
	metric.WithDescription("Manuals that reached their sink."),
)
var skippedCounter, _ = meter.Int64Counter(
	"manuals.skipped",
	metric.WithDescription("Manuals lost to a recoverable failure."),
)

// ErrAborted is returned when a sink reports a failure no later file can
// recover from.
var ErrAborted = errors.New("download aborted")

type Streamer interface {
	Stream(ctx context.Context, link string) (io.ReadCloser, int, error)
}

type Options struct {
	// shown in progress lines
	SiteUrl string
}

type Summary struct {
	Stored  int
	Skipped int
	Bytes   int64
}

type Downloader struct {
	streamer Streamer
	sink     sink.Sink
	opts     Options
}

func New(streamer Streamer, s sink.Sink, opts Options) *Downloader {
	return &Downloader{
		streamer: streamer,
		sink:     s,
		opts:     opts,
	}
}

// FileName is the name a manual is stored under, path separators in the
// parts are replaced so it stays a single file.
func FileName(group, name string) string {
	file := fmt.Sprintf("%s-%s.pdf", group, name)
	return strings.ReplaceAll(file, "/", "_")
}

// Run downloads every file of the catalog in order. Transport errors and
// fatal sink results stop the run, the summary then counts what was done
// before.
func (d *Downloader) Run(ctx context.Context, c catalog.Catalog) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("sink", d.sink.Name()))
	summary := Summary{}
	for _, group := range c {
		for _, entry := range group.Files {
			err := ctx.Err()
			if err != nil {
				return summary, err
			}

			file := FileName(group.Key, entry.Name)
			res, err := d.download(ctx, file, entry.Link)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "transport error")
				return summary, err
			}

			switch res.Status {
			case sink.Stored:
				summary.Stored++
				summary.Bytes += res.Bytes
				storedCounter.Add(ctx, 1, attrs)
				slog.InfoContext(ctx, "saved file", "file", file, "sink", d.sink.Name(), "bytes", res.Bytes)
			case sink.Skipped:
				summary.Skipped++
				skippedCounter.Add(ctx, 1, attrs)
				slog.WarnContext(ctx, "cannot save file", "file", file, "sink", d.sink.Name(), "err", res.Err)
			case sink.Fatal:
				err := fmt.Errorf("%w: %s: %w", ErrAborted, file, res.Err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "sink failed")
				return summary, err
			}
		}
	}
	return summary, nil
}

func (d *Downloader) download(ctx context.Context, file, link string) (sink.Result, error) {
	slog.InfoContext(ctx, "getting file", "file", file, "site", d.opts.SiteUrl)

	body, status, err := d.streamer.Stream(ctx, link)
	if err != nil {
		return sink.Result{}, err
	}
	defer body.Close()

	if status < 200 || status > 299 {
		return sink.Skip(fmt.Errorf("GET %s: unexpected status %d", link, status)), nil
	}
	return d.sink.Put(ctx, file, body), nil
}
