// Package credentials holds the per-sink option sets. The bag is built once
// at startup and shared by pointer; only the dropbox sink writes to it, when
// the OAuth flow fills in a missing access token.
package credentials

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"motorcycle-manuals/lib/configutil"
	"motorcycle-manuals/lib/kvflag"
)

var ErrIncompleteRemote = errors.New("incomplete remote server credentials")

type Dropbox struct {
	AccessToken string `json:"access_token"`
	AppKey      string `json:"app_key"`
	AppSecret   string `json:"app_secret"`
}

type Remote struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	// private key tried before the password, defaults to ~/.ssh/id_rsa
	KeyFile string `json:"key_file"`
	// defaults to ~/.ssh/known_hosts
	KnownHosts string `json:"known_hosts"`
}

type S3 struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Prefix          string `json:"prefix"`
}

type Credentials struct {
	Dropbox Dropbox `json:"dropbox"`
	Remote  Remote  `json:"remote_server"`
	S3      S3      `json:"s3"`
}

// Load reads the credentials file (and its .local override), a missing file
// is not an error.
func Load(path string) (*Credentials, error) {
	creds, err := configutil.ReadOptional[Credentials](path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return &creds, nil
}

// ApplyApp copies --app options over the dropbox section.
func (c *Credentials) ApplyApp(app kvflag.Map) {
	if v, ok := app.Get("app_key"); ok {
		c.Dropbox.AppKey = v
	}
	if v, ok := app.Get("app_secret"); ok {
		c.Dropbox.AppSecret = v
	}
	if v, ok := app.Get("access_token"); ok {
		c.Dropbox.AccessToken = v
	}
}

// ApplyRemote copies --remote options over the remote server section.
func (c *Credentials) ApplyRemote(remote kvflag.Map) error {
	if v, ok := remote.Get("ip"); ok {
		c.Remote.IP = v
	}
	if v, ok := remote.Get("username"); ok {
		c.Remote.Username = v
	}
	if v, ok := remote.Get("password"); ok {
		c.Remote.Password = v
	}
	if v, ok := remote.Get("key_file"); ok {
		c.Remote.KeyFile = v
	}
	if v, ok := remote.Get("known_hosts"); ok {
		c.Remote.KnownHosts = v
	}
	if v, ok := remote.Get("port"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid remote port %q", v)
		}
		c.Remote.Port = port
	}
	return nil
}

// ApplyS3 copies --s3 options over the s3 section.
func (c *Credentials) ApplyS3(s3 kvflag.Map) {
	fields := map[string]*string{
		"bucket":            &c.S3.Bucket,
		"region":            &c.S3.Region,
		"endpoint":          &c.S3.Endpoint,
		"access_key_id":     &c.S3.AccessKeyID,
		"secret_access_key": &c.S3.SecretAccessKey,
		"prefix":            &c.S3.Prefix,
	}
	for key, field := range fields {
		if v, ok := s3.Get(key); ok {
			*field = v
		}
	}
}

// Validate requires ip, username and password, naming the first one
// missing.
func (r Remote) Validate() error {
	if r.IP == "" && r.Username == "" && r.Password == "" {
		return fmt.Errorf("%w: add the `ip', `username' and `password' for the remote server and try again", ErrIncompleteRemote)
	}
	if r.IP == "" {
		return fmt.Errorf("%w: add the `ip' address for the remote server and try again", ErrIncompleteRemote)
	}
	if r.Username == "" {
		return fmt.Errorf("%w: add the `username' for the remote server and try again", ErrIncompleteRemote)
	}
	if r.Password == "" {
		return fmt.Errorf("%w: add the `password' for the remote server and try again", ErrIncompleteRemote)
	}
	return nil
}

// Addr is the host:port to dial, port 22 unless configured.
func (r Remote) Addr() string {
	port := r.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(r.IP, strconv.Itoa(port))
}
