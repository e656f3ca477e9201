package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer abc ,x-team=storefront,broken, =v")
	require.Equal(t, map[string]string{"authorization": "Bearer abc", "x-team": "storefront"}, got)
	require.Empty(t, ParseHeaders(""))
}

func TestInitTracerExporters(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = InitTracer(context.Background(), TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "zipkin")
}
