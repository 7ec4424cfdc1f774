package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"golang.org/x/oauth2"

	"motorcycle-manuals/internal/credentials"
	"motorcycle-manuals/lib/restyutil"
)

var tracer = otel.Tracer("motorcycle.internal.sink")

const (
	DropboxAuthURL   = "https://www.dropbox.com/oauth2/authorize"
	DropboxTokenURL  = "https://api.dropboxapi.com/oauth2/token"
	DropboxUploadURL = "https://content.dropboxapi.com/2/files/upload"

	DropboxFolder = "/Books/"
)

type DropboxOptions struct {
	// the access token is written back here once authorized
	Credentials *credentials.Credentials
	Prompt      io.Reader
	Out         io.Writer

	// endpoints, the Dropbox API when empty
	AuthURL   string
	TokenURL  string
	UploadURL string
}

// Dropbox uploads files into the /Books folder of a Dropbox account.
type Dropbox struct {
	token     string
	uploadURL string
	http      *resty.Client
}

// NewDropbox returns a sink bound to an access token. Without a configured
// token it runs the no-redirect OAuth flow on the terminal given in opts.
func NewDropbox(ctx context.Context, opts DropboxOptions) (*Dropbox, error) {
	if opts.Credentials == nil {
		opts.Credentials = &credentials.Credentials{}
	}
	if opts.AuthURL == "" {
		opts.AuthURL = DropboxAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DropboxTokenURL
	}
	if opts.UploadURL == "" {
		opts.UploadURL = DropboxUploadURL
	}

	creds := &opts.Credentials.Dropbox
	if creds.AccessToken == "" {
		token, err := authorize(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("dropbox sink: %w", err)
		}
		creds.AccessToken = token
	}

	client := resty.New()
	restyutil.InstrumentClient(client, tracer, nil)

	return &Dropbox{
		token:     creds.AccessToken,
		uploadURL: opts.UploadURL,
		http:      client,
	}, nil
}

func authorize(ctx context.Context, opts DropboxOptions) (string, error) {
	app := opts.Credentials.Dropbox
	if app.AppKey == "" || app.AppSecret == "" {
		return "", fmt.Errorf("set an access_token, or the app_key and app_secret to authorize")
	}

	config := oauth2.Config{
		ClientID:     app.AppKey,
		ClientSecret: app.AppSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  opts.AuthURL,
			TokenURL: opts.TokenURL,
		},
	}
	state, err := random.String(16)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(opts.Out, "1. Go to: %s\n", config.AuthCodeURL(state))
	fmt.Fprintln(opts.Out, `2. Click "Allow" (you might have to log in first).`)
	fmt.Fprint(opts.Out, "3. Copy the authorization code and enter it here: ")

	line, err := bufio.NewReader(opts.Prompt).ReadString('\n')
	code := strings.TrimSpace(line)
	if code == "" {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("read authorization code: %w", err)
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}
	slog.InfoContext(ctx, "dropbox authorized")
	return token.AccessToken, nil
}

type uploadArg struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Mute bool   `json:"mute"`
}

// apiArg encodes the Dropbox-API-Arg header, which only carries ASCII.
func apiArg(file string) (string, error) {
	encoded, err := json.Marshal(uploadArg{
		Path: DropboxFolder + file,
		Mode: "add",
		Mute: true,
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, r := range string(encoded) {
		switch {
		case r < utf8.RuneSelf:
			sb.WriteRune(r)
		case r > 0xffff:
			r1, r2 := surrogates(r)
			fmt.Fprintf(&sb, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&sb, `\u%04x`, r)
		}
	}
	return sb.String(), nil
}

func surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xd800 + (r>>10)&0x3ff, 0xdc00 + r&0x3ff
}

func (d *Dropbox) Name() string {
	return MethodDropbox
}

// Put failures only lose the current file.
func (d *Dropbox) Put(ctx context.Context, file string, body io.Reader) Result {
	data, err := io.ReadAll(body)
	if err != nil {
		return Skip(fmt.Errorf("read %s: %w", file, err))
	}
	arg, err := apiArg(file)
	if err != nil {
		return Skip(err)
	}

	res, err := d.http.R().
		SetContext(ctx).
		SetAuthToken(d.token).
		SetHeader("Content-Type", "application/octet-stream").
		SetHeader("Dropbox-API-Arg", arg).
		SetBody(bytes.NewReader(data)).
		Post(d.uploadURL)
	if err != nil {
		return Skip(fmt.Errorf("upload %s: %w", file, err))
	}
	if !res.IsSuccess() {
		return Skip(fmt.Errorf("upload %s: %s: %s", file, res.Status(), strings.TrimSpace(res.String())))
	}
	return Done(int64(len(data)))
}

func (d *Dropbox) Close() error {
	return nil
}
