package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"motorcycle-manuals/internal/catalog"
	"motorcycle-manuals/internal/credentials"
	"motorcycle-manuals/internal/downloader"
	"motorcycle-manuals/internal/fetcher"
	"motorcycle-manuals/internal/sink"
	"motorcycle-manuals/lib/kvflag"
	"motorcycle-manuals/lib/restyutil"
	"motorcycle-manuals/lib/serviceutil"
	"motorcycle-manuals/lib/telemetry"

	"github.com/spf13/cobra"
)

const (
	// time left to the pipeline to notice an interrupt before exiting anyway,
	// a blocked terminal read never does
	interruptGrace = 2 * time.Second
	shutdownGrace  = 5 * time.Second
)

var opts struct {
	url        string
	filter     string
	configFile string
	dumpHttp   string
	rate       float64
	timeout    time.Duration
	cloudflare bool
	verbose    bool

	method string
	dir    string
	app    kvflag.Map
	remote kvflag.Map
	s3     kvflag.Map
}

var tel telemetry.Telemetry

var rootCmd = &cobra.Command{
	Use:           "motorcycle",
	Short:         "motorcycle downloads PDF motorcycle manuals and saves them locally, on a remote server, on Dropbox or in S3.",
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// flags parsed fine, later errors are not about usage
		cmd.SilenceUsage = true

		telemetry.InitSlog(opts.verbose)

		var err error
		tel, err = telemetry.SetupFromEnv(cmd.Context(), "motorcycle")
		if err != nil {
			slog.Warn("telemetry disabled", "err", err)
		}
	},
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		creds, err := loadCredentials()
		if err != nil {
			return fail(ctx, exitInvalidConfig, "invalid configuration", err)
		}

		s, err := sink.DefaultRegistry().Open(ctx, opts.method, sink.Options{
			Dir:         opts.dir,
			Credentials: creds,
		})
		if err != nil {
			return fail(ctx, exitInvalidConfig, "cannot save files", err)
		}
		defer s.Close()

		client, err := newFetcher()
		if err != nil {
			return fail(ctx, exitInvalidConfig, "invalid fetch options", err)
		}
		manuals, err := buildCatalog(ctx, client)
		if err != nil {
			return err
		}

		summary, err := downloader.New(client, s, downloader.Options{SiteUrl: opts.url}).Run(ctx, manuals)
		if err != nil {
			return fail(ctx, exitFailure, "download failed", err)
		}
		slog.Info(
			"finished",
			"stored", summary.Stored,
			"skipped", summary.Skipped,
			"bytes", summary.Bytes,
		)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.url, "url", fetcher.DefaultBaseUrl, "base url of the manuals site")
	flags.StringVarP(&opts.filter, "filter", "f", "", "only manufacturers containing this word (case-sensitive)")
	flags.StringVar(&opts.configFile, "config", "motorcycle.json5", "credentials file, a missing file is ignored")
	flags.StringVar(&opts.dumpHttp, "dump-http", "", "write every HTTP message into a new subdirectory of this directory")
	flags.Float64Var(&opts.rate, "rate", 2, "maximum requests per second, 0 disables the limit")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout of a single request")
	flags.BoolVar(&opts.cloudflare, "cloudflare", false, "send browser-like headers to pass cloudflare checks")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "show progress")

	local := rootCmd.Flags()
	local.StringVarP(&opts.method, "method", "m", sink.MethodLocal, "where to save files: local, scp, dropbox or s3")
	local.StringVarP(&opts.dir, "dir", "d", "/tmp", "destination directory, locally or on the remote server")
	local.Var(&opts.app, "app", "dropbox app: app_key, app_secret, access_token")
	local.Var(&opts.remote, "remote", "remote server: ip, username, password, port, key_file, known_hosts")
	local.Var(&opts.s3, "s3", "s3 bucket: bucket, region, endpoint, access_key_id, secret_access_key, prefix")
}

func loadCredentials() (*credentials.Credentials, error) {
	creds, err := credentials.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	creds.ApplyApp(opts.app)
	creds.ApplyS3(opts.s3)
	err = creds.ApplyRemote(opts.remote)
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func newFetcher() (*fetcher.Client, error) {
	var output restyutil.InstrumentOutput
	if opts.dumpHttp != "" {
		fsOutput, err := restyutil.NewFilesystemOutput(opts.dumpHttp)
		if err != nil {
			return nil, fmt.Errorf("dump http messages: %w", err)
		}
		slog.Info("dumping http messages", "dir", fsOutput.Dir())
		output = fsOutput
	}

	return fetcher.New(fetcher.Options{
		BaseUrl:          opts.url,
		Timeout:          opts.timeout,
		RateLimit:        opts.rate,
		CloudflareBypass: opts.cloudflare,
		Output:           output,
	})
}

func buildCatalog(ctx context.Context, client *fetcher.Client) (catalog.Catalog, error) {
	manuals, err := catalog.NewBuilder(client, opts.url).Build(ctx, opts.filter)
	if err != nil {
		return nil, fail(ctx, exitFailure, "cannot list manuals", err)
	}
	slog.Info("found manuals", "groups", len(manuals), "files", manuals.FileCount())
	return manuals, nil
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := tel.Shutdown(ctx)
	if err != nil {
		slog.Warn("shutdown telemetry", "err", err)
	}
}

func interrupted() {
	fmt.Println("\nYou interrupted program execution, see you soon ;-)")
	shutdownTelemetry()
	serviceutil.Exit(exitFailure, "", nil)
}

func run(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func Execute() {
	ctx, stop := serviceutil.SignalContext()
	defer stop()
	go func() {
		<-ctx.Done()
		time.Sleep(interruptGrace)
		interrupted()
	}()

	err := run(ctx, os.Args[1:])
	if errors.Is(err, errInterrupted) {
		interrupted()
	}
	shutdownTelemetry()
	if err != nil {
		serviceutil.Exit(ExitCode(err), "motorcycle failed", err)
	}
}
