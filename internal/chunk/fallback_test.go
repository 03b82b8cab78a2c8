package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fallbackChunks(t *testing.T, path, language, source string) []*Chunk {
	t.Helper()
	chunks, err := NewFallbackExtractor().Chunk(context.Background(), &FileInput{
		Path:     path,
		Content:  []byte(source),
		Language: language,
	})
	require.NoError(t, err)
	return chunks
}

func TestFallbackEveryTopLevelSymbol(t *testing.T) {
	source := `import socket

# Connects somewhere.
def connect(host):
    return socket.create_connection((host, 80))

class Pool:
    def get(self):
        pass

def close(conn):
    conn.close()
`
	chunks := fallbackChunks(t, "src/net.py", "python", source)
	require.Len(t, chunks, 3)

	connect := chunks[0]
	assert.Equal(t, "connect", connect.Payload.Name)
	assert.Equal(t, CodeTypeFunction, connect.Payload.CodeType)
	// Leading comment included, imports prepended.
	assert.Contains(t, connect.Content, "# Connects somewhere.")
	assert.Contains(t, connect.Content, "import socket")
	assert.Equal(t, 3, connect.Payload.LineStart)

	pool := chunks[1]
	assert.Equal(t, "Pool", pool.Payload.Name)
	assert.Equal(t, CodeTypeClass, pool.Payload.CodeType)
	// The indented method belongs to the class span, not its own chunk.
	assert.Contains(t, pool.Content, "def get(self):")

	assert.Equal(t, "close", chunks[2].Payload.Name)
}

func TestFallbackNoHeadersYieldsModuleChunk(t *testing.T) {
	source := "x = 1\ny = x + 1\n"
	chunks := fallbackChunks(t, "src/consts.py", "python", source)
	require.Len(t, chunks, 1)
	assert.Equal(t, CodeTypeModule, chunks[0].Payload.CodeType)
	assert.Equal(t, 1, chunks[0].Payload.LineStart)
}

func TestFallbackEmptyFile(t *testing.T) {
	assert.Empty(t, fallbackChunks(t, "src/e.py", "python", "\n\n"))
}
