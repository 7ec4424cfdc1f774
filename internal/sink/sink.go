// Package sink stores downloaded manuals. Every destination reports through
// the same Result so the downloader applies one policy to all of them.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"motorcycle-manuals/internal/credentials"
)

var ErrUnknownSink = errors.New("unknown sink")

type Status int

const (
	// Stored means the file reached its destination.
	Stored Status = iota
	// Skipped means this file was lost but the next one may still succeed.
	Skipped
	// Fatal means no further file can succeed, the run must stop.
	Fatal
)

func (s Status) String() string {
	switch s {
	case Stored:
		return "stored"
	case Skipped:
		return "skipped"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type Result struct {
	Status Status
	Bytes  int64
	Err    error
}

func Done(n int64) Result {
	return Result{Status: Stored, Bytes: n}
}

func Skip(err error) Result {
	return Result{Status: Skipped, Err: err}
}

func Fail(err error) Result {
	return Result{Status: Fatal, Err: err}
}

type Sink interface {
	Name() string
	// Put stores the contents of body under the given file name.
	Put(ctx context.Context, file string, body io.Reader) Result
	Close() error
}

type Options struct {
	// destination directory, used by the local and scp sinks
	Dir         string
	Credentials *credentials.Credentials
	// Prompt and Out are the terminal used by interactive authorization,
	// they default to stdin and stdout.
	Prompt io.Reader
	Out    io.Writer
}

type Factory func(ctx context.Context, opts Options) (Sink, error)

// Registry maps method names to sink factories, unknown methods open the
// fallback sink.
type Registry struct {
	factories map[string]Factory
	fallback  string
}

func NewRegistry(fallback string) *Registry {
	return &Registry{
		factories: map[string]Factory{},
		fallback:  fallback,
	}
}

func (r *Registry) Register(method string, factory Factory) {
	r.factories[method] = factory
}

func (r *Registry) Methods() []string {
	methods := make([]string, 0, len(r.factories))
	for m := range r.factories {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Open constructs the sink for method. Construction fails when the sink
// cannot work at all, so that nothing is downloaded for nothing.
func (r *Registry) Open(ctx context.Context, method string, opts Options) (Sink, error) {
	factory, ok := r.factories[method]
	if !ok {
		slog.WarnContext(ctx, "unknown method, saving locally", "method", method, "fallback", r.fallback)
		factory, ok = r.factories[r.fallback]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSink, method)
		}
	}
	if opts.Credentials == nil {
		opts.Credentials = &credentials.Credentials{}
	}
	if opts.Prompt == nil {
		opts.Prompt = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return factory(ctx, opts)
}

const (
	MethodLocal   = "local"
	MethodScp     = "scp"
	MethodDropbox = "dropbox"
	MethodS3      = "s3"
)

// DefaultRegistry knows every sink of this package, falling back to local.
func DefaultRegistry() *Registry {
	r := NewRegistry(MethodLocal)
	r.Register(MethodLocal, func(_ context.Context, opts Options) (Sink, error) {
		return NewLocal(opts.Dir)
	})
	r.Register(MethodScp, func(_ context.Context, opts Options) (Sink, error) {
		return NewSFTP(opts.Credentials.Remote, opts.Dir)
	})
	r.Register(MethodDropbox, func(ctx context.Context, opts Options) (Sink, error) {
		return NewDropbox(ctx, DropboxOptions{
			Credentials: opts.Credentials,
			Prompt:      opts.Prompt,
			Out:         opts.Out,
		})
	})
	r.Register(MethodS3, func(ctx context.Context, opts Options) (Sink, error) {
		return NewS3(ctx, opts.Credentials.S3)
	})
	return r
}
