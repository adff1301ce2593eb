package mail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMessageBytes_PlainText(t *testing.T) {
	m := &Message{From: "me@example.com", To: "a@b.co", Subject: "Hi", Body: "Hello\nworld"}

	raw, err := m.Bytes(fixedTime)
	require.NoError(t, err)

	parsed, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "me@example.com", parsed.Header.Get("From"))
	assert.Equal(t, "a@b.co", parsed.Header.Get("To"))
	assert.Equal(t, "Hi", parsed.Header.Get("Subject"))
	assert.Equal(t, "1.0", parsed.Header.Get("MIME-Version"))
	assert.Contains(t, parsed.Header.Get("Message-ID"), "@example.com>")

	date, err := parsed.Header.Date()
	require.NoError(t, err)
	assert.True(t, fixedTime.Equal(date))

	body, err := io.ReadAll(quotedprintable.NewReader(parsed.Body))
	require.NoError(t, err)
	// Text-mode quoted-printable normalizes line breaks to CRLF.
	assert.Equal(t, "Hello\r\nworld", string(body))
}

func TestMessageBytes_NoFromHeaderWhenUnset(t *testing.T) {
	m := &Message{To: "a@b.co", Subject: "x", Body: "y"}

	raw, err := m.Bytes(fixedTime)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "From:"))
}

func TestMessageBytes_NonASCIISubject(t *testing.T) {
	m := &Message{To: "a@b.co", Subject: "Grüße", Body: "x"}

	raw, err := m.Bytes(fixedTime)
	require.NoError(t, err)

	parsed, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	encoded := parsed.Header.Get("Subject")
	assert.True(t, strings.HasPrefix(encoded, "=?UTF-8?b?") || strings.HasPrefix(encoded, "=?utf-8?b?"))

	decoded, err := new(mime.WordDecoder).DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, "Grüße", decoded)
}

func TestMessageBytes_WithAttachment(t *testing.T) {
	data := bytes.Repeat([]byte{0x00, 0xff, 0x10, 0x42}, 100)
	m := &Message{
		To:      "a@b.co",
		Subject: "Report",
		Body:    "see attached",
		Attachment: &Attachment{
			Filename: "report.pdf",
			MimeType: "application/pdf",
			Data:     data,
		},
	}

	raw, err := m.Bytes(fixedTime)
	require.NoError(t, err)

	parsed, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])

	textPart, err := mr.NextRawPart()
	require.NoError(t, err)
	text, err := io.ReadAll(quotedprintable.NewReader(textPart))
	require.NoError(t, err)
	assert.Equal(t, "see attached", string(text))

	attPart, err := mr.NextRawPart()
	require.NoError(t, err)
	assert.Equal(t, "base64", attPart.Header.Get("Content-Transfer-Encoding"))
	assert.Contains(t, attPart.Header.Get("Content-Disposition"), `filename="report.pdf"`)
	assert.True(t, strings.HasPrefix(attPart.Header.Get("Content-Type"), "application/pdf"))

	encoded, err := io.ReadAll(attPart)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimRight(string(encoded), "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	_, err = mr.NextRawPart()
	assert.Equal(t, io.EOF, err)
}

func TestEncodeRFC2047(t *testing.T) {
	assert.Equal(t, "plain ascii", encodeRFC2047("plain ascii"))
	assert.NotEqual(t, "héllo", encodeRFC2047("héllo"))
}

func TestMessageBytes_HeaderInjection(t *testing.T) {
	m := &Message{To: "a@b.co", Subject: "hi\r\nBcc: victim@example.com", Body: "x"}

	raw, err := m.Bytes(fixedTime)
	require.NoError(t, err)

	parsed, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, parsed.Header.Get("Bcc"))
	assert.Equal(t, "hi Bcc: victim@example.com", parsed.Header.Get("Subject"))
}
