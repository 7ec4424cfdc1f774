package commands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"motorcycle-manuals/internal/credentials"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// flag values live in package variables and survive between executions
func resetFlags(t testing.TB) {
	opts.app, opts.remote, opts.s3 = nil, nil, nil
	for _, set := range []*pflag.FlagSet{rootCmd.Flags(), rootCmd.PersistentFlags()} {
		set.VisitAll(func(f *pflag.Flag) {
			err := f.Value.Set(f.DefValue)
			if err != nil {
				t.Fatal(err)
			}
			f.Changed = false
		})
	}
}

func execute(t testing.TB, args ...string) error {
	resetFlags(t)
	config := filepath.Join(t.TempDir(), "motorcycle.json5")
	return run(context.Background(), append(args, "--config", config))
}

func newSite(t testing.TB) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/motorcycle-manuals.asp":
			w.Write([]byte(`<div id="content"><a href="adly-manuals.asp">Adly Service Manuals</a></div>`))
		case "/adly-manuals.asp":
			w.Write([]byte(`<table><tr><td><a href="x">Adly 300 RT</a></td></tr></table>`))
		case "/pdfs/Adly 300 RT.pdf":
			w.Write([]byte("%PDF adly"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, exitFailure, ExitCode(errInterrupted))
	require.Equal(t, exitInvalidConfig, ExitCode(context.DeadlineExceeded))
}

func TestIncompleteRemoteIsInvalidConfig(t *testing.T) {
	err := execute(t, "-m", "scp", "--remote", "ip=10.0.0.5,username=admin")
	require.ErrorIs(t, err, credentials.ErrIncompleteRemote)
	require.Equal(t, exitInvalidConfig, ExitCode(err))

	err = execute(t, "--remote", "port=ssh")
	require.Error(t, err)
	require.Equal(t, exitInvalidConfig, ExitCode(err))

	err = execute(t, "--bogus")
	require.Error(t, err)
	require.Equal(t, exitInvalidConfig, ExitCode(err))
}

func TestUnknownMethodSavesLocally(t *testing.T) {
	server := newSite(t)
	dir := t.TempDir()

	err := execute(t, "-m", "ftp", "-d", dir, "--url", server.URL+"/", "--rate", "0", "-f", "Adly")
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(dir, "Adly-Adly 300 RT.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "%PDF adly", string(contents))
}

func TestUnreachableSiteIsFailure(t *testing.T) {
	server := newSite(t)
	url := server.URL + "/"
	server.Close()

	err := execute(t, "-d", t.TempDir(), "--url", url, "--rate", "0")
	require.Error(t, err)
	require.Equal(t, exitFailure, ExitCode(err))
}

func TestList(t *testing.T) {
	server := newSite(t)

	err := execute(t, "list", "--url", server.URL+"/", "--rate", "0")
	require.NoError(t, err)
}
