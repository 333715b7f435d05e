package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"DEBUG": zerolog.DebugLevel,
		"trace": zerolog.InfoLevel,
		"":      zerolog.InfoLevel,
		"ALERT": zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestPerRoleFilesAndConsoleMirror(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logs, err := New(Options{Dir: dir, Verbose: true, Console: &console, Level: "debug"})
	require.NoError(t, err)

	buyer := logs.For("buyer")
	buyer.Info().Msg("added 2x apples to the cart")
	buyer.Error().Msg("cart is empty")
	logs.For("seller").Warn().Msg("stock running low")
	require.NoError(t, logs.Close())

	buyerLog, err := os.ReadFile(filepath.Join(dir, "buyer.log"))
	require.NoError(t, err)
	assert.Contains(t, string(buyerLog), "[TRACE] added 2x apples to the cart")
	assert.Contains(t, string(buyerLog), "[ERROR] cart is empty")
	assert.NotContains(t, string(buyerLog), "stock running low")
	assert.NotContains(t, string(buyerLog), "\033[")

	sellerLog, err := os.ReadFile(filepath.Join(dir, "seller.log"))
	require.NoError(t, err)
	assert.Contains(t, string(sellerLog), "[ALERT] stock running low")

	assert.Contains(t, console.String(), "added 2x apples to the cart")
	assert.Contains(t, console.String(), "stock running low")
}

func TestLevelFilterAndNoConsoleWithoutVerbose(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logs, err := New(Options{Dir: dir, Console: &console, Level: "alert"})
	require.NoError(t, err)

	logger := logs.For("carrier")
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	require.NoError(t, logs.Close())

	data, err := os.ReadFile(filepath.Join(dir, "carrier.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
	assert.Empty(t, console.String())
}

func TestNopDiscards(t *testing.T) {
	logs := Nop()
	logs.For("buyer").Error().Msg("nothing happens")
	assert.NoError(t, logs.Close())
}
