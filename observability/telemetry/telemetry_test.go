package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer abc ,x-team=moxie,,broken,=nokey")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-team":        "moxie",
	}, got)
	require.Empty(t, ParseHeaders(""))
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestInitTracesInstallsProvider(t *testing.T) {
	// The HTTP exporter connects lazily, so no collector is needed.
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "moxied-test",
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
		Traces:      true,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
