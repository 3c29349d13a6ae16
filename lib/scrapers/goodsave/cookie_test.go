package goodsave

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, rawUrl string) *Client {
	client, err := NewClient(context.Background(), ClientOptions{Url: rawUrl})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestInstallSessionCookie(t *testing.T) {
	client := newTestClient(t, "https://forms.example.com/goodsave")
	doc := parsePage(t, formPage)

	client.InstallSessionCookie(context.Background(), doc)

	require.Len(t, client.Http.Cookies, 1)
	cookie := client.Http.Cookies[0]
	require.Equal(t, "fr_session", cookie.Name)
	require.Equal(t, "3f9c2d", cookie.Value)
	require.Equal(t, "forms.example.com", cookie.Domain)
	require.Equal(t, "/", cookie.Path)
}

func TestInstallSessionCookieNoMarker(t *testing.T) {
	client := newTestClient(t, "https://forms.example.com/goodsave")
	page := strings.Replace(formPage, "Helper.setCookie", "Helper.noop", -1)
	doc := parsePage(t, page)

	client.InstallSessionCookie(context.Background(), doc)
	require.Empty(t, client.Http.Cookies)
}

func TestInstallSessionCookieBadShape(t *testing.T) {
	client := newTestClient(t, "https://forms.example.com/goodsave")
	page := strings.Replace(
		formPage,
		`Helper.setCookie("fr_session", "3f9c2d", true);`,
		`Helper.setCookie(name, value, true);`,
		1,
	)
	doc := parsePage(t, page)

	client.InstallSessionCookie(context.Background(), doc)
	require.Empty(t, client.Http.Cookies)
}
