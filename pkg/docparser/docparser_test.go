package docparser

import (
	"testing"

	"github.com/kadirpekel/docgateway/pkg/apperrors"
	"github.com/stretchr/testify/require"
)

func TestParse_PlainText(t *testing.T) {
	text, err := Parse("notes.txt", []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
}

func TestParse_Markdown(t *testing.T) {
	text, err := Parse("readme.md", []byte("# Title\n\nBody text"))
	require.NoError(t, err)
	require.Equal(t, "# Title\n\nBody text", text)
}

func TestParse_InvalidUTF8Replaced(t *testing.T) {
	text, err := Parse("notes.txt", []byte{'h', 'i', 0xff, 'x'})
	require.NoError(t, err)
	require.Contains(t, text, "hi")
	require.Contains(t, text, "x")
}

func TestParse_EmptyDocument(t *testing.T) {
	_, err := Parse("notes.txt", []byte("   \n\t  "))
	require.Error(t, err)
	var kindErr interface{ Kind() string }
	require.ErrorAs(t, err, &kindErr)
	require.Equal(t, string(apperrors.KindEmptyDocument), kindErr.Kind())
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse("archive.zip", []byte("PK\x03\x04"))
	require.Error(t, err)
	var kindErr interface{ Kind() string }
	require.ErrorAs(t, err, &kindErr)
	require.Equal(t, string(apperrors.KindUnsupportedFormat), kindErr.Kind())
}

func TestParse_NoExtension(t *testing.T) {
	_, err := Parse("README", []byte("body"))
	require.Error(t, err)
}
