package pagination

import (
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleULID = "01HYX3KQW7ERTV9XNBM2P8QJZF"

func TestEncodeDecodeCursor(t *testing.T) {
	cursor := EncodeCursor("  01hyx3kqw7ertv9xnbm2p8qjzf ")

	decoded, err := DecodeCursor(cursor)

	require.NoError(t, err)
	require.Equal(t, sampleULID, decoded)
	require.Empty(t, EncodeCursor(""))
}

func TestDecodeCursorErrors(t *testing.T) {
	for _, cursor := range []string{
		"",
		"not-base64!",
		base64.RawURLEncoding.EncodeToString([]byte(sampleULID)),
		base64.RawURLEncoding.EncodeToString([]byte("id:not-a-ulid")),
	} {
		_, err := DecodeCursor(cursor)
		require.ErrorIs(t, err, ErrInvalidCursor, cursor)
	}
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage(url.Values{})
	require.NoError(t, err)
	require.Equal(t, Page{Limit: DefaultLimit}, page)

	page, err = ParsePage(url.Values{"limit": {"25"}, "cursor": {EncodeCursor(sampleULID)}})
	require.NoError(t, err)
	require.Equal(t, Page{Limit: 25, After: sampleULID}, page)

	_, err = ParsePage(url.Values{"limit": {"0"}})
	require.ErrorIs(t, err, ErrInvalidLimit)

	_, err = ParsePage(url.Values{"limit": {"101"}})
	require.ErrorIs(t, err, ErrInvalidLimit)

	_, err = ParsePage(url.Values{"cursor": {"garbage"}})
	require.ErrorIs(t, err, ErrInvalidCursor)
}
