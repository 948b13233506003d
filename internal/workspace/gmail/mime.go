package gmail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/angelmondragon/labaccess-backend/internal/messages"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

const lineLength = 76

// BuildMIME renders email as an RFC 5322 message: an empty plain-text part,
// the HTML body, then one base64 part per attachment.
func BuildMIME(email messages.Email) ([]byte, error) {
	to, err := recipient(email.To)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	from := (&mail.Address{Name: email.Name, Address: email.From}).String()
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", email.Subject),
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=" + mixed.Boundary(),
	}
	for _, h := range headers {
		buf.WriteString(h + "\r\n")
	}
	buf.WriteString("\r\n")

	var alt bytes.Buffer
	altWriter := multipart.NewWriter(&alt)
	if err := writeTextPart(altWriter, "text/plain; charset=UTF-8", ""); err != nil {
		return nil, err
	}
	if err := writeTextPart(altWriter, "text/html; charset=UTF-8", email.HTMLBody); err != nil {
		return nil, err
	}
	if err := altWriter.Close(); err != nil {
		return nil, err
	}

	altPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/alternative; boundary=" + altWriter.Boundary()},
	})
	if err != nil {
		return nil, err
	}
	if _, err := altPart.Write(alt.Bytes()); err != nil {
		return nil, err
	}

	for _, att := range email.Attachments {
		if err := writeAttachment(mixed, att); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recipient parses a single form-supplied address for the To header.
func recipient(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", pkgerrors.New(pkgerrors.CodeFormat, "recipient required").
			WithDetails(map[string]any{"field": "to"})
	}
	if strings.ContainsAny(raw, "\r\n") {
		return "", pkgerrors.New(pkgerrors.CodeFormat, "recipient must be a single line").
			WithDetails(map[string]any{"field": "to"})
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeFormat, err, "recipient is not an email address").
			WithDetails(map[string]any{"field": "to", "value": raw})
	}
	if addr.Name == "" {
		return addr.Address, nil
	}
	return addr.String(), nil
}

func writeTextPart(w *multipart.Writer, contentType, body string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}
	return writeBase64(part, []byte(body))
}

func writeAttachment(w *multipart.Writer, att messages.Attachment) error {
	contentType := att.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(att.Data).String()
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": att.Name})
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(baseType(contentType), map[string]string{"name": att.Name})},
		"Content-Disposition":       {disposition},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}
	return writeBase64(part, att.Data)
}

func baseType(contentType string) string {
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "application/octet-stream"
	}
	return media
}

func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > lineLength {
		if _, err := io.WriteString(w, encoded[:lineLength]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[lineLength:]
	}
	_, err := io.WriteString(w, encoded+"\r\n")
	return err
}
