package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("offer-letters/offer_app-1.pdf", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, "offer-letters/offer_app-1.pdf", rel)

	// Saving again overwrites the prior artifact.
	_, err = store.Save("offer-letters/offer_app-1.pdf", []byte("second"))
	require.NoError(t, err)

	file, err := store.Open("offer-letters/offer_app-1.pdf")
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestLocalStorageSaveStream(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("receipts/r1.pdf", strings.NewReader("streamed"))
	require.NoError(t, err)

	file, err := store.Open("receipts/r1.pdf")
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(content))
}

func TestLocalStorageDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("a.pdf", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete("a.pdf"))

	_, err = store.Open("a.pdf")
	require.Error(t, err)

	// Deleting a missing file is not an error.
	require.NoError(t, store.Delete("a.pdf"))
}
