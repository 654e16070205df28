package stream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeeBodyCopiesToArchive(t *testing.T) {
	body := io.NopCloser(strings.NewReader(deltaStream))
	client, archive := TeeBody(body)

	archived := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(archive)
		archived <- string(b)
	}()

	got, err := io.ReadAll(client)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.Equal(t, deltaStream, string(got))
	assert.Equal(t, deltaStream, <-archived)
}

func TestTeeBodyDetachesClosedArchive(t *testing.T) {
	body := io.NopCloser(strings.NewReader(deltaStream))
	client, archive := TeeBody(body)
	require.NoError(t, archive.Close())

	got, err := io.ReadAll(client)
	require.NoError(t, err)
	assert.Equal(t, deltaStream, string(got))
}
