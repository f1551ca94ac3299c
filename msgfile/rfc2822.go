package msgfile

import (
	"io"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"msgview/models"
)

// rfcMessage is the RFC 2822 fallback parse result
type rfcMessage struct {
	path     string
	size     int64
	envelope *enmime.Envelope
}

func parseRFC2822(r io.Reader, path string, size int64) (*rfcMessage, error) {
	envelope, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}
	return &rfcMessage{path: path, size: size, envelope: envelope}, nil
}

func (m *rfcMessage) detail() *models.EmailDetail {
	env := m.envelope

	detail := &models.EmailDetail{
		Filename:   filepath.Base(m.path),
		Subject:    env.GetHeader("Subject"),
		Sender:     env.GetHeader("From"),
		Recipients: m.addressList("To"),
		Cc:         m.addressList("Cc"),
		Bcc:        m.addressList("Bcc"),
		Body:       env.Text,
		HTMLBody:   env.HTML,
		MessageID:  strings.Trim(env.GetHeader("Message-Id"), "<>"),
		Headers:    m.headers(),
		Size:       m.size,
	}
	if detail.Subject == "" {
		detail.Subject = defaultSubject
	}
	if detail.Sender == "" {
		detail.Sender = defaultSender
	}
	if detail.Recipients == nil {
		detail.Recipients = []string{}
	}
	if detail.HTMLBody == "" && looksLikeHTML(detail.Body) {
		detail.HTMLBody = detail.Body
	}

	if raw := env.GetHeader("Date"); raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			utc := t.UTC()
			detail.Date = &utc
		}
	}

	detail.Attachments = make([]models.Attachment, 0, len(env.Attachments))
	for _, part := range env.Attachments {
		detail.Attachments = append(detail.Attachments, models.Attachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Size:        int64(len(part.Content)),
		})
	}
	return detail
}

func (m *rfcMessage) attachmentData(name string) ([]byte, bool) {
	for _, part := range m.envelope.Attachments {
		if part.FileName == name {
			return part.Content, true
		}
	}
	return nil, false
}

// addressList returns formatted addresses for a header, falling back to a
// raw comma split when the header does not parse as addresses
func (m *rfcMessage) addressList(key string) []string {
	raw := m.envelope.GetHeader(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	addrs, err := m.envelope.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return splitAddressList(raw, ",")
	}
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Name != "" {
			out = append(out, addr.Name+" <"+addr.Address+">")
		} else {
			out = append(out, addr.Address)
		}
	}
	return out
}

func (m *rfcMessage) headers() map[string]string {
	root := m.envelope.Root
	if root == nil || len(root.Header) == 0 {
		return nil
	}
	headers := make(map[string]string, len(root.Header))
	for key, values := range root.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}
