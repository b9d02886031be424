/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"program", "read", "console", "protogen", "sim"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestReadAgainstSimulator(t *testing.T) {
	rootCmd.SetArgs([]string{"--sim", "read", "0100"})
	assert.NoError(t, rootCmd.Execute())
}

func TestReadRejectsBadAddress(t *testing.T) {
	rootCmd.SetArgs([]string{"--sim", "read", "9000"})
	assert.Error(t, rootCmd.Execute())
}

func TestSimRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rom.bin")
	image := make([]byte, 3000)
	for i := range image {
		image[i] = byte(i * 3)
	}
	require.NoError(t, os.WriteFile(path, image, 0644))

	rootCmd.SetArgs([]string{"sim", path})
	assert.NoError(t, rootCmd.Execute())
}

func TestProgramMissingImage(t *testing.T) {
	rootCmd.SetArgs([]string{"--sim", "program", "--image", filepath.Join(t.TempDir(), "none.bin")})
	assert.Error(t, rootCmd.Execute())
}
