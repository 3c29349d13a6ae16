package goodsave

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"formrunner/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const cookieMarker = "Helper.setCookie"

var cookieCallRegex = regexp.MustCompile(`Helper\.setCookie\("([^"]+)",\s*"([^"]+)",\s*(true|false)\)`)

// InstallSessionCookie scans the page's script text for the inline
// Helper.setCookie call and installs the cookie into the session. The page
// does not always embed the call, so this never fails the run: a miss is
// logged and the pipeline proceeds without the cookie. Only the first
// marker-bearing script node is examined.
func (c *Client) InstallSessionCookie(ctx context.Context, doc *goquery.Document) {
	ctx, span := tracer.Start(ctx, "InstallSessionCookie")
	defer span.End()

	for _, script := range doc.Find("script").Nodes {
		text := htmlutil.GetText(script)
		if !strings.Contains(text, cookieMarker) {
			continue
		}
		groups := cookieCallRegex.FindStringSubmatch(text)
		if groups == nil {
			slog.WarnContext(ctx, "cookie script did not match expected shape")
			return
		}
		c.SetCookie(groups[1], groups[2])
		slog.InfoContext(ctx, "session cookie installed", "name", groups[1])
		return
	}
	slog.WarnContext(ctx, "no script containing session cookie found")
}
