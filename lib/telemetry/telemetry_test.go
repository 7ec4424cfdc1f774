package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledTelemetryShutdown(t *testing.T) {
	tel, err := Setup(context.Background(), "test:telemetry", Config{})
	if err != nil {
		t.Fatal(err)
	}
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestHandlerLevels(t *testing.T) {
	var quiet bytes.Buffer
	logger := slog.New(NewHandler(&quiet, false))
	logger.Info("progress")
	logger.Warn("careful")
	require.NotContains(t, quiet.String(), "progress")
	require.Contains(t, quiet.String(), "careful")

	var verbose bytes.Buffer
	logger = slog.New(NewHandler(&verbose, true))
	logger.Debug("details", "url", "https://carlsalter.com/")
	require.Contains(t, verbose.String(), "details")
	require.Contains(t, verbose.String(), "url=https://carlsalter.com/")
}
