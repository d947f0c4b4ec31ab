package scraper

import (
	"errors"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// actionTimeout is the per-action deadline.
const actionTimeout = 10 * time.Second

// clickElement scrolls el into view and clicks it. When another element
// covers the target (cookie banners, sticky headers) it falls back to a
// DOM click, which ignores hit-testing.
func clickElement(el *rod.Element) error {
	_ = el.ScrollIntoView()

	err := el.Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	var covered *rod.CoveredError
	var invisible *rod.InvisibleShapeError
	if errors.As(err, &covered) || errors.As(err, &invisible) {
		_, jsErr := el.Eval(`() => this.click()`)
		return jsErr
	}
	return err
}

// jsRegexLiteral escapes text for use as a JavaScript regex source.
func jsRegexLiteral(text string) string {
	return regexp.QuoteMeta(text)
}
