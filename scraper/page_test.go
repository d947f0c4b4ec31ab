package scraper

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetHeaders(t *testing.T) {
	orig := sendExtraHeaders
	t.Cleanup(func() { sendExtraHeaders = orig })

	var logs bytes.Buffer
	b := &Browser{logger: slog.New(slog.NewTextHandler(&logs, nil))}

	var sent proto.NetworkHeaders
	sendExtraHeaders = func(_ *rod.Page, headers proto.NetworkHeaders) error {
		sent = headers
		return nil
	}
	b.setHeaders(nil, map[string]string{"Referer": "https://www.google.com/", "Accept-Language": ""})
	require.Len(t, sent, 1, "empty values are not sent")
	assert.Contains(t, sent, "Referer")
	assert.Empty(t, logs.String())

	sendExtraHeaders = func(*rod.Page, proto.NetworkHeaders) error {
		return errors.New("target closed")
	}
	b.setHeaders(nil, map[string]string{"Accept-Language": "en-US"})
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), `error="target closed"`)
}
