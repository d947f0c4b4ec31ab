package cleaner

import (
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the shortest TextContent accepted from readability.
// Product pages are short, so the bar is low.
const minContentLength = 50

// mainContent runs Mozilla Readability on rawHTML. ok is false when the
// algorithm failed or found too little text; the title may still be set.
func (c *Cleaner) mainContent(rawHTML, sourceURL string) (article readability.Article, ok bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		c.logger.Warn("readability: invalid source URL", "url", sourceURL, "error", err)
		return readability.Article{}, false
	}

	article, err = readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		c.logger.Warn("readability: extraction failed", "url", sourceURL, "error", err)
		return readability.Article{}, false
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		c.logger.Debug("readability: content too short", "url", sourceURL, "length", len(article.TextContent))
		return article, false
	}
	return article, true
}
