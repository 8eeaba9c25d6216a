package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bellhop-project/bellhop/internal/protocol"
)

func TestLoadMemberDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "member.txt")
	content := "eudqghq, Khoor456!\n" + // "branden, Hello123!" obscured
		"short, x\n" + // password below minimum length
		"zloolhpv, sdvvzrug0\n" +
		"garbage line without separator\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	dir, err := LoadMemberDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Len())

	pass, ok := dir.Lookup("eudqghq")
	require.True(t, ok)
	assert.Equal(t, "Khoor456!", pass)

	// The directory stores obscured forms; reveal recovers the original.
	assert.Equal(t, "branden", protocol.Reveal("eudqghq"))

	_, ok = dir.Lookup("short")
	assert.False(t, ok)

	_, ok = dir.Lookup("nobody")
	assert.False(t, ok)
}

func TestLoadMemberDirectoryMissingFile(t *testing.T) {
	_, err := LoadMemberDirectory(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
