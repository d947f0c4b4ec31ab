package cleaner

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ApplyCSSSelector returns the concatenated outer HTML of every element
// matching selector and the number of matches. With no match the HTML is
// empty and n is 0.
func ApplyCSSSelector(rawHTML, selector string) (matched string, n int, err error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return "", 0, err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", 0, err
	}

	nodes := cascadia.QueryAll(doc, sel)
	var buf bytes.Buffer
	for _, node := range nodes {
		if err := html.Render(&buf, node); err != nil {
			return "", 0, err
		}
	}
	return buf.String(), len(nodes), nil
}
