package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocal(dir, "/static/uploads/")
	require.NoError(t, err)

	url, err := st.Put(context.Background(), "bikes/7/photo.jpg", strings.NewReader("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/static/uploads/bikes/7/photo.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "bikes", "7", "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	require.NoError(t, st.Delete(context.Background(), url))
	_, err = os.Stat(filepath.Join(dir, "bikes", "7", "photo.jpg"))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, st.Delete(context.Background(), url))
}

func TestLocalStorage_KeysStayInsideBaseDir(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocal(filepath.Join(dir, "uploads"), "/static")
	require.NoError(t, err)

	url, err := st.Put(context.Background(), "../../escape.txt", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "/static/escape.txt", url)
	_, err = os.Stat(filepath.Join(dir, "uploads", "escape.txt"))
	assert.NoError(t, err)

	_, err = st.Put(context.Background(), "", strings.NewReader("x"), "text/plain")
	assert.ErrorIs(t, err, ErrInvalidKey)

	assert.ErrorIs(t, st.Delete(context.Background(), "https://elsewhere/x"), ErrInvalidKey)
}
