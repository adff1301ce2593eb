package mail

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"
)

// Message is a composed email, owned by the call that created it.
type Message struct {
	From       string
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Attachment is a file read fully into memory.
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// Bytes renders the message in RFC 5322 format with MIME parts. now is used
// for the Date header.
func (m *Message) Bytes(now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	if m.From != "" {
		writeHeader(&buf, "From", m.From)
	}
	writeHeader(&buf, "To", m.To)
	writeHeader(&buf, "Subject", encodeRFC2047(m.Subject))
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", messageID(m.From))
	writeHeader(&buf, "MIME-Version", "1.0")

	if m.Attachment == nil {
		writeHeader(&buf, "Content-Type", `text/plain; charset="UTF-8"`)
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQuotedPrintable(&buf, m.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", `text/plain; charset="UTF-8"`)
	textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	if err := writeQuotedPrintable(pw, m.Body); err != nil {
		return nil, err
	}

	filename := mime.QEncoding.Encode("UTF-8", m.Attachment.Filename)
	attHeader := textproto.MIMEHeader{}
	attHeader.Set("Content-Type", fmt.Sprintf("%s; name=%q", m.Attachment.MimeType, filename))
	attHeader.Set("Content-Transfer-Encoding", "base64")
	attHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	aw, err := mw.CreatePart(attHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment part: %w", err)
	}
	if err := writeBase64Lines(aw, m.Attachment.Data); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	writeHeader(&buf, "Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	buf.WriteString("\r\n")
	buf.Write(parts.Bytes())
	return buf.Bytes(), nil
}

// headerSanitizer keeps caller-supplied values on a single header line.
var headerSanitizer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(headerSanitizer.Replace(value))
	buf.WriteString("\r\n")
}

// encodeRFC2047 encodes a header value according to RFC 2047 when it
// contains non-ASCII characters.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

func writeQuotedPrintable(w io.Writer, body string) error {
	qw := quotedprintable.NewWriter(w)
	if _, err := qw.Write([]byte(body)); err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}
	if err := qw.Close(); err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}
	return nil
}

// writeBase64Lines writes data as base64 wrapped at 76 columns (RFC 2045).
func writeBase64Lines(w io.Writer, data []byte) error {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(lineLen, len(encoded))
		if _, err := w.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return fmt.Errorf("failed to encode attachment: %w", err)
		}
		encoded = encoded[n:]
	}
	return nil
}

func messageID(from string) string {
	domain := "gmail-send-mcp.local"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = strings.TrimSuffix(from[i+1:], ">")
	}
	var b [12]byte
	_, _ = rand.Read(b[:])
	return "<" + hex.EncodeToString(b[:]) + "@" + domain + ">"
}
