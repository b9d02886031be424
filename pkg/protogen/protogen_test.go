// Copyright (c) Jeff Berkowitz 2022, 2026. All rights reserved.

package protogen

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf))
	h := buf.String()

	assert.Contains(t, h, "#ifndef ROMLOAD_PROTOCOL_H\n")
	assert.Contains(t, h, "#define PROTOCOL_BAUD_RATE       57600UL\n")
	assert.Contains(t, h, "#define PROTOCOL_BLOCK_SIZE      64\n")
	assert.Contains(t, h, "#define PROTOCOL_IMAGE_SIZE      0x8000\n")
	assert.Contains(t, h, "#define PROTOCOL_OP_WRITE        0x00\n")
	assert.Contains(t, h, "#define PROTOCOL_OP_READ         0x01\n")
	assert.Contains(t, h, "#define PROTOCOL_TOKEN_OK        \"ok\"\n")
	assert.Contains(t, h, "#define PROTOCOL_TOKEN_READY     \"ready\"\n")
}

func TestGenerateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), HeaderFile)
	require.NoError(t, GenerateFile(path))

	var buf bytes.Buffer
	require.NoError(t, Generate(&buf))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(content))
}
