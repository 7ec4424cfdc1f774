package catalog

import (
	"context"
	"errors"
	"strings"

	"motorcycle-manuals/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoContainer means the page parsed but the element that marks a usable
// page was not there. Callers treat it as "no data".
var ErrNoContainer = errors.New("container element not found")

const (
	indexContainer   = "div#content"
	subPageContainer = "table"
)

// the container only gates the page, anchors are collected from the whole
// document, so links outside of it are kept too.
func anchorsGatedBy(ctx context.Context, page, container string) ([]htmlutil.Anchor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	if doc.Find(container).Length() == 0 {
		return nil, ErrNoContainer
	}
	return htmlutil.GetAnchors(ctx, doc.Find("a")), nil
}

// IndexAnchors returns every anchor of the manufacturers index page, provided
// it has the content container.
func IndexAnchors(ctx context.Context, page string) ([]htmlutil.Anchor, error) {
	return anchorsGatedBy(ctx, page, indexContainer)
}

// SubPageAnchors returns every anchor of a manufacturer page, provided it
// has a table.
func SubPageAnchors(ctx context.Context, page string) ([]htmlutil.Anchor, error) {
	return anchorsGatedBy(ctx, page, subPageContainer)
}
