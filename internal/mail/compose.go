package mail

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
)

const defaultMimeType = "application/octet-stream"

// Draft holds validated send_email arguments.
type Draft struct {
	From           string
	To             string
	Subject        string
	Body           string
	AttachmentPath string
}

// Compose builds a Message from a draft. When AttachmentPath is set the file
// is read in full; any failure is returned as an *AttachmentError.
func Compose(d Draft) (*Message, error) {
	msg := &Message{
		From:    d.From,
		To:      d.To,
		Subject: d.Subject,
		Body:    d.Body,
	}

	if d.AttachmentPath == "" {
		return msg, nil
	}

	att, err := ReadAttachment(d.AttachmentPath)
	if err != nil {
		return nil, err
	}
	msg.Attachment = att
	return msg, nil
}

// ReadAttachment loads a local file as an attachment. The MIME type is
// inferred from the extension and falls back to application/octet-stream.
func ReadAttachment(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &AttachmentError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &AttachmentError{Path: path, Err: errIsDirectory}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &AttachmentError{Path: path, Err: err}
	}

	return &Attachment{
		Filename: filepath.Base(path),
		MimeType: DetectMimeType(path),
		Data:     data,
	}, nil
}

// DetectMimeType returns the media type for a file name without parameters.
func DetectMimeType(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if t == "" {
		return defaultMimeType
	}
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}
