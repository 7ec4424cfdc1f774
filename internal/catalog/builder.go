// Package catalog scrapes the manufacturers index and each manufacturer page
// into a Catalog of downloadable manuals.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"motorcycle-manuals/lib/textutil"
)

var tracer = otel.Tracer("motorcycle.internal.catalog")

// ErrShortName is returned for anchor text with fewer words than the
// "<Brand> Service Manuals" pattern.
var ErrShortName = errors.New("name does not follow the <brand> <kind> Manuals pattern")

const (
	IndexPage     = "motorcycle-manuals.asp"
	manualsMarker = "Manuals"
	pdfPath       = "/pdfs/"
	pdfExt        = ".pdf"
	// the brand is the third word counted from the end
	keyPosition = 3
)

// GroupKey derives the manufacturer key from index anchor text such as
// "Adly Service Manuals". Words are split on single spaces.
func GroupKey(text string) (string, error) {
	tokens := strings.Split(text, " ")
	if len(tokens) < keyPosition {
		return "", fmt.Errorf("%w: %q", ErrShortName, text)
	}
	return tokens[len(tokens)-keyPosition], nil
}

// NormalizeFilter keeps the first word so that both "Adly" and
// "Adly Service Manuals" filter on "Adly".
func NormalizeFilter(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// FileLink builds the download url of a manual.
func FileLink(baseUrl, name string) string {
	return strings.TrimSuffix(baseUrl, "/") + pdfPath + name + pdfExt
}

type Fetcher interface {
	Get(ctx context.Context, ref string) (string, error)
}

type Builder struct {
	fetcher Fetcher
	baseUrl string
}

func NewBuilder(fetcher Fetcher, baseUrl string) *Builder {
	return &Builder{fetcher: fetcher, baseUrl: baseUrl}
}

// Build fetches the index page and every manufacturer page whose key
// contains filter (case-sensitive), an empty filter keeps them all. Fetch
// errors are returned as is; pages without the expected container only
// produce empty results.
func (b *Builder) Build(ctx context.Context, filter string) (Catalog, error) {
	ctx, span := tracer.Start(ctx, "Build")
	defer span.End()

	filter = NormalizeFilter(filter)
	if filter != "" {
		slog.DebugContext(ctx, "set filter string", "filter", filter)
	}
	span.SetAttributes(attribute.String("filter", filter))

	page, err := b.fetcher.Get(ctx, IndexPage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch index page")
		return nil, err
	}

	anchors, err := IndexAnchors(ctx, page)
	if err != nil {
		slog.WarnContext(ctx, "no manufacturers found on index page", "err", err)
		return Catalog{}, nil
	}

	catalog := Catalog{}
	var seenKeys []string
	for _, a := range anchors {
		if !strings.Contains(a.Name, manualsMarker) {
			continue
		}
		key, err := GroupKey(a.Name)
		if err != nil {
			slog.DebugContext(ctx, "skipping anchor", "name", a.Name, "err", err)
			continue
		}
		seenKeys = append(seenKeys, key)
		if filter != "" && !strings.Contains(key, filter) {
			continue
		}
		if a.Href == "" {
			continue
		}

		files, err := b.files(ctx, key, a.Href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch manufacturer page")
			return nil, err
		}
		catalog = append(catalog, Group{Key: key, Files: files})
	}

	if filter != "" && len(catalog) == 0 {
		if closest, ok := closestKey(filter, seenKeys); ok {
			slog.WarnContext(ctx, "no manufacturer matched the filter", "filter", filter, "closest", closest)
		}
	}

	span.SetAttributes(
		attribute.Int("groups", len(catalog)),
		attribute.Int("files", catalog.FileCount()),
	)
	return catalog, nil
}

// files collects the manuals listed on one manufacturer page, that is every
// anchor whose text mentions the key.
func (b *Builder) files(ctx context.Context, key, href string) ([]FileEntry, error) {
	page, err := b.fetcher.Get(ctx, href)
	if err != nil {
		return nil, err
	}

	anchors, err := SubPageAnchors(ctx, page)
	if err != nil {
		slog.WarnContext(ctx, "no manuals found on manufacturer page", "group", key, "href", href, "err", err)
		return nil, nil
	}

	var files []FileEntry
	for _, a := range anchors {
		if a.Name == "" || !strings.Contains(a.Name, key) {
			continue
		}
		files = append(files, FileEntry{
			Name: a.Name,
			Link: FileLink(b.baseUrl, a.Name),
		})
	}
	slog.DebugContext(ctx, "collected manuals", "group", key, "count", len(files))
	return files, nil
}

func closestKey(filter string, keys []string) (string, bool) {
	return textutil.Closest(filter, keys)
}
