package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"motorcycle-manuals/internal/credentials"
)

const dialTimeout = 15 * time.Second

// SFTP copies files to a directory on a remote server. Every Put opens its
// own connection.
type SFTP struct {
	remote credentials.Remote
	dir    string
	config *ssh.ClientConfig
}

func NewSFTP(remote credentials.Remote, dir string) (*SFTP, error) {
	err := remote.Validate()
	if err != nil {
		return nil, err
	}

	home, _ := os.UserHomeDir()
	keyFile := remote.KeyFile
	if keyFile == "" && home != "" {
		keyFile = filepath.Join(home, ".ssh", "id_rsa")
	}
	knownHostsFile := remote.KnownHosts
	if knownHostsFile == "" {
		if home == "" {
			return nil, fmt.Errorf("scp sink: no home directory for known_hosts")
		}
		knownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
	}

	hostKeys, err := newHostKeys(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("scp sink: %w", err)
	}

	return &SFTP{
		remote: remote,
		dir:    dir,
		config: &ssh.ClientConfig{
			User:            remote.Username,
			Auth:            authMethods(keyFile, remote.Password),
			HostKeyCallback: hostKeys.callback,
			Timeout:         dialTimeout,
		},
	}, nil
}

// authMethods offers the private key first when it can be loaded, then the
// password.
func authMethods(keyFile, password string) []ssh.AuthMethod {
	methods := []ssh.AuthMethod{}
	if keyFile != "" {
		signer, err := loadSigner(keyFile)
		if err != nil {
			slog.Debug("private key unavailable", "file", keyFile, "err", err)
		} else {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}
	return append(methods, ssh.Password(password))
}

func loadSigner(keyFile string) (ssh.Signer, error) {
	pem, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(pem)
}

func (s *SFTP) Name() string {
	return MethodScp
}

func (s *SFTP) Put(ctx context.Context, file string, body io.Reader) Result {
	data, err := io.ReadAll(body)
	if err != nil {
		return Fail(fmt.Errorf("read %s: %w", file, err))
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return Fail(fmt.Errorf("connect to %s: %w", s.remote.Addr(), err))
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return Fail(fmt.Errorf("open sftp session: %w", err))
	}
	defer client.Close()

	// usually already exists
	err = client.Mkdir(s.dir)
	if err != nil {
		slog.DebugContext(ctx, "remote mkdir", "dir", s.dir, "err", err)
	}

	remotePath := path.Join(s.dir, file)
	f, err := client.Create(remotePath)
	if err != nil {
		return Fail(fmt.Errorf("create %s: %w", remotePath, err))
	}
	n, err := f.ReadFrom(bytes.NewReader(data))
	closeErr := f.Close()
	if err != nil {
		return Fail(fmt.Errorf("write %s: %w", remotePath, err))
	}
	if closeErr != nil {
		return Fail(fmt.Errorf("close %s: %w", remotePath, closeErr))
	}
	return Done(n)
}

func (s *SFTP) dial(ctx context.Context) (*ssh.Client, error) {
	addr := s.remote.Addr()
	dialer := net.Dialer{Timeout: dialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(netConn, addr, s.config)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func (s *SFTP) Close() error {
	return nil
}

// hostKeys checks server keys against a known_hosts file. Hosts missing
// from the file are trusted and appended, a changed key is rejected.
type hostKeys struct {
	file   string
	verify ssh.HostKeyCallback

	mu    sync.Mutex
	added map[string]string
}

func newHostKeys(file string) (*hostKeys, error) {
	err := os.MkdirAll(filepath.Dir(file), 0700)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, err
	}
	f.Close()

	verify, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", file, err)
	}
	return &hostKeys{
		file:   file,
		verify: verify,
		added:  map[string]string{},
	}, nil
}

func (h *hostKeys) callback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	err := h.verify(hostname, remote, key)
	var keyErr *knownhosts.KeyError
	if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// the parsed file does not see keys appended during this run
	marshaled := string(key.Marshal())
	if prev, ok := h.added[hostname]; ok {
		if prev != marshaled {
			return fmt.Errorf("host key for %s changed during this run", hostname)
		}
		return nil
	}

	f, err := os.OpenFile(h.file, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	_, err = fmt.Fprintln(f, line)
	if err != nil {
		return err
	}

	slog.Warn("added unknown host to known_hosts", "host", hostname, "file", h.file)
	h.added[hostname] = marshaled
	return nil
}
