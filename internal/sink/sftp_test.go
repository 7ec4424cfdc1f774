package sink

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/ssh"

	"motorcycle-manuals/internal/credentials"
)

func closedPort(t testing.TB) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func TestSFTPUnreachableIsFatal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSFTP(credentials.Remote{
		IP:         "127.0.0.1",
		Port:       closedPort(t),
		Username:   "foo",
		Password:   "pass",
		KeyFile:    filepath.Join(dir, "id_rsa"),
		KnownHosts: filepath.Join(dir, "known_hosts"),
	}, "/upload")
	if err != nil {
		t.Fatal(err)
	}

	res := s.Put(context.Background(), "x.pdf", strings.NewReader("x"))
	require.Equal(t, Fatal, res.Status)
	require.Error(t, res.Err)
	// the file is created up front
	require.FileExists(t, filepath.Join(dir, "known_hosts"))
}

func TestSFTPIncompleteCredentials(t *testing.T) {
	_, err := NewSFTP(credentials.Remote{IP: "127.0.0.1", Username: "foo"}, "/upload")
	require.ErrorIs(t, err, credentials.ErrIncompleteRemote)
	require.ErrorContains(t, err, "`password'")
}

func setupSFTPServer(t testing.TB) (string, int) {
	if testing.Short() {
		t.Skip("needs docker")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "atmoz/sftp",
			Cmd:          []string{"foo:pass:::upload"},
			ExposedPorts: []string{"22/tcp"},
			WaitingFor:   wait.ForListeningPort("22/tcp"),
		},
	})
	if err != nil {
		t.Skipf("sftp container unavailable: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "22/tcp")
	if err != nil {
		t.Fatal(err)
	}
	return host, port.Int()
}

func TestSFTPUpload(t *testing.T) {
	host, port := setupSFTPServer(t)
	dir := t.TempDir()
	remote := credentials.Remote{
		IP:         host,
		Port:       port,
		Username:   "foo",
		Password:   "pass",
		KeyFile:    filepath.Join(dir, "id_rsa"),
		KnownHosts: filepath.Join(dir, "known_hosts"),
	}

	s, err := NewSFTP(remote, "/upload")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	res := s.Put(ctx, "Adly-Adly 300 RT.pdf", strings.NewReader("first"))
	require.Equal(t, Stored, res.Status, res.Err)
	res = s.Put(ctx, "Adly-Adly 300 RT.pdf", strings.NewReader("second"))
	require.Equal(t, Stored, res.Status, res.Err)
	require.Equal(t, int64(len("second")), res.Bytes)

	knownHosts, err := os.ReadFile(remote.KnownHosts)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, strings.Count(string(knownHosts), "\n"))

	// a new sink reads the host from the file
	s, err = NewSFTP(remote, "/upload")
	if err != nil {
		t.Fatal(err)
	}
	res = s.Put(ctx, "Adly-Adly 50.pdf", strings.NewReader("other"))
	require.Equal(t, Stored, res.Status, res.Err)

	conn, err := ssh.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)), &ssh.ClientConfig{
		User:            "foo",
		Auth:            []ssh.AuthMethod{ssh.Password("pass")},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client, err := sftp.NewClient(conn)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	f, err := client.Open("/upload/Adly-Adly 300 RT.pdf")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	contents, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	// the remote file is replaced, not appended
	require.Equal(t, "second", string(contents))
}
