package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"motorcycle-manuals/internal/catalog"
	"motorcycle-manuals/internal/fetcher"
	"motorcycle-manuals/internal/sink"

	"github.com/stretchr/testify/require"
)

const indexPage = `<html><body>
<div id="content">
	<a href="adly-manuals.asp">Adly Service Manuals</a>
	<a href="bmw-manuals.asp">BMW Service Manuals</a>
	<a href="adly-owners.asp">Adly Owners Manuals</a>
</div>
</body></html>`

const adlyPage = `<html><body><table>
	<tr><td><a href="pdfs/Adly 300 RT.pdf">Adly 300 RT</a></td></tr>
	<tr><td><a href="pdfs/Adly 50.pdf">Adly 50</a></td></tr>
</table></body></html>`

const adlyOwnersPage = `<html><body><table>
	<tr><td><a href="pdfs/Adly Missing.pdf">Adly Missing</a></td></tr>
</table></body></html>`

const bmwPage = `<html><body><table>
	<tr><td><a href="pdfs/BMW R1200.pdf">BMW R1200</a></td></tr>
</table></body></html>`

func newSite(t testing.TB) (*httptest.Server, *[]string) {
	downloads := []string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/" + catalog.IndexPage:
			w.Write([]byte(indexPage))
		case "/adly-manuals.asp":
			w.Write([]byte(adlyPage))
		case "/adly-owners.asp":
			w.Write([]byte(adlyOwnersPage))
		case "/bmw-manuals.asp":
			w.Write([]byte(bmwPage))
		case "/pdfs/Adly Missing.pdf":
			w.WriteHeader(http.StatusNotFound)
		default:
			if strings.HasPrefix(r.URL.Path, "/pdfs/") {
				downloads = append(downloads, r.URL.Path)
				w.Write([]byte("%PDF " + r.URL.Path))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &downloads
}

func buildCatalog(t testing.TB, client *fetcher.Client, baseUrl, filter string) catalog.Catalog {
	c, err := catalog.NewBuilder(client, baseUrl).Build(context.Background(), filter)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFileName(t *testing.T) {
	require.Equal(t, "Adly-Adly 300 RT.pdf", FileName("Adly", "Adly 300 RT"))
	require.Equal(t, "BMW-R 850_1100.pdf", FileName("BMW", "R 850/1100"))
}

func TestRunWithFilter(t *testing.T) {
	server, downloads := newSite(t)
	baseUrl := server.URL + "/"
	client, err := fetcher.New(fetcher.Options{BaseUrl: baseUrl})
	if err != nil {
		t.Fatal(err)
	}

	c := buildCatalog(t, client, baseUrl, "Adly")
	require.Equal(t, []string{"Adly", "Adly"}, c.Keys())
	for _, group := range c {
		for _, entry := range group.Files {
			require.Equal(t, server.URL+"/pdfs/"+entry.Name+".pdf", entry.Link)
		}
	}

	dir := t.TempDir()
	local, err := sink.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := New(client, local, Options{SiteUrl: baseUrl}).Run(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, summary.Stored)
	require.Equal(t, 1, summary.Skipped)

	require.Equal(t, []string{"/pdfs/Adly 300 RT.pdf", "/pdfs/Adly 50.pdf"}, *downloads)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	require.Equal(t, []string{"Adly-Adly 300 RT.pdf", "Adly-Adly 50.pdf"}, names)

	contents, err := os.ReadFile(filepath.Join(dir, "Adly-Adly 300 RT.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "%PDF /pdfs/Adly 300 RT.pdf", string(contents))
	require.Equal(t, int64(len(contents))+int64(len("%PDF /pdfs/Adly 50.pdf")), summary.Bytes)
}

type recordingSink struct {
	files  []string
	result sink.Result
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Put(_ context.Context, file string, body io.Reader) sink.Result {
	s.files = append(s.files, file)
	io.Copy(io.Discard, body)
	return s.result
}

func (s *recordingSink) Close() error { return nil }

func TestRunAbortsOnFatal(t *testing.T) {
	server, _ := newSite(t)
	client, err := fetcher.New(fetcher.Options{BaseUrl: server.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	c := buildCatalog(t, client, server.URL+"/", "")
	require.Equal(t, 4, c.FileCount())

	s := &recordingSink{result: sink.Fail(errors.New("disk full"))}
	summary, err := New(client, s, Options{}).Run(context.Background(), c)
	require.ErrorIs(t, err, ErrAborted)
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, Summary{}, summary)
	require.Len(t, s.files, 1)
}

func TestRunContinuesOnSkip(t *testing.T) {
	server, _ := newSite(t)
	client, err := fetcher.New(fetcher.Options{BaseUrl: server.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	c := buildCatalog(t, client, server.URL+"/", "")

	s := &recordingSink{result: sink.Skip(errors.New("quota"))}
	summary, err := New(client, s, Options{}).Run(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 4, summary.Skipped)
	// the missing file never reaches the sink
	require.Equal(t, []string{"Adly-Adly 300 RT.pdf", "Adly-Adly 50.pdf", "BMW-BMW R1200.pdf"}, s.files)
}

func TestRunTransportError(t *testing.T) {
	server, _ := newSite(t)
	client, err := fetcher.New(fetcher.Options{BaseUrl: server.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	c := buildCatalog(t, client, server.URL+"/", "BMW")
	server.Close()

	s := &recordingSink{result: sink.Done(1)}
	_, err = New(client, s, Options{}).Run(context.Background(), c)
	require.ErrorIs(t, err, fetcher.ErrTransport)
	require.Empty(t, s.files)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &recordingSink{result: sink.Done(1)}
	c := catalog.Catalog{{Key: "Adly", Files: []catalog.FileEntry{{Name: "x", Link: "http://127.0.0.1:1/x"}}}}
	_, err := New(nil, s, Options{}).Run(ctx, c)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, s.files)
}
