package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<html><body>
			<a href="adly.asp">  Adly
				Service <b>Manuals</b></a>
			<a>no href</a>
			<a href="/pdfs/x.pdf"></a>
			<a href="pdfs/Adly 50 100%.pdf">Adly 50 100%</a>
		</body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "Adly Service Manuals", Href: "adly.asp"},
		{Name: "no href", Href: ""},
		{Name: "", Href: "/pdfs/x.pdf"},
		{Name: "Adly 50 100%", Href: ""},
	}, anchors)
}

func TestNormalizeText(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{in: "  Adly Service Manuals\n", expected: "Adly Service Manuals"},
		{in: "Adly\t\tService   Manuals", expected: "Adly Service Manuals"},
		{in: "Adly\u0000 Service", expected: "Adly Service"},
		{in: "", expected: ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, NormalizeText(test.in))
	}
}
