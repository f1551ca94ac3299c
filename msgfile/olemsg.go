package msgfile

import (
	"errors"
	"net/mail"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/richardlehane/mscfb"

	"msgview/models"
)

// MAPI property ids used for field mapping
const (
	pidSubject             = 0x0037
	pidClientSubmitTime    = 0x0039
	pidTransportHeaders    = 0x007D
	pidSenderName          = 0x0C1A
	pidSenderEmail         = 0x0C1F
	pidDisplayBcc          = 0x0E02
	pidDisplayCc           = 0x0E03
	pidDisplayTo           = 0x0E04
	pidMessageDeliveryTime = 0x0E06
	pidBody                = 0x1000
	pidHTMLBody            = 0x1013
	pidMessageID           = 0x1035
	pidDisplayName         = 0x3001
	pidEmailAddress        = 0x3003
	pidAttachData          = 0x3701
	pidAttachFilename      = 0x3704
	pidAttachLongFilename  = 0x3707
	pidAttachMimeTag       = 0x370E
	pidSmtpAddress         = 0x39FE
	pidSenderSMTP          = 0x5D01
)

const (
	recipPrefix  = "__recip_version1.0"
	attachPrefix = "__attach_version1.0"
	propsStream  = "__properties_version1.0"
	substgPrefix = "__substg1.0_"
)

// oleMessage accumulates property streams from one compound file
type oleMessage struct {
	path string
	size int64

	props        map[uint16]string
	submitTime   time.Time
	deliveryTime time.Time

	recips  map[string]*recipProps
	attachs map[string]*attachProps

	sawMAPI bool // at least one property stream was recognized
}

type recipProps struct {
	displayName string
	email       string
	smtp        string
}

type attachProps struct {
	longName string
	name     string
	mimeTag  string
	data     []byte
	hasData  bool
}

func parseOLE(doc *mscfb.Reader, path string, size int64) (*oleMessage, error) {
	msg := &oleMessage{
		path:    path,
		size:    size,
		props:   make(map[uint16]string),
		recips:  make(map[string]*recipProps),
		attachs: make(map[string]*attachProps),
	}

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if err := msg.addEntry(entry); err != nil {
			return nil, err
		}
	}
	if !msg.sawMAPI {
		return nil, errors.New("container has no MAPI property streams")
	}
	return msg, nil
}

// readStream bounds every stream read by the container's on-disk size;
// no single stream can legitimately exceed the file it lives in
func (m *oleMessage) readStream(entry *mscfb.File) ([]byte, error) {
	return readStream(entry, m.size)
}

func (m *oleMessage) addEntry(entry *mscfb.File) error {
	switch len(entry.Path) {
	case 0:
		if entry.Name == propsStream {
			m.sawMAPI = true
			return m.readFixedProps(entry)
		}
		id, typ, ok := parseStreamName(entry.Name)
		if !ok {
			return nil
		}
		m.sawMAPI = true
		data, err := m.readStream(entry)
		if err != nil {
			return err
		}
		if s, ok := decodeStringProp(data, typ); ok {
			m.props[id] = s
		}
	case 1:
		parent := entry.Path[0]
		if strings.HasPrefix(parent, recipPrefix) {
			return m.addRecipProp(parent, entry)
		}
		if strings.HasPrefix(parent, attachPrefix) {
			return m.addAttachProp(parent, entry)
		}
		// Embedded messages and deeper storages are ignored.
	}
	return nil
}

func (m *oleMessage) readFixedProps(entry *mscfb.File) error {
	data, err := m.readStream(entry)
	if err != nil {
		return err
	}
	fixed := parseFixedProperties(data, topLevelHeaderLen)
	if t, ok := fixed.times[pidClientSubmitTime]; ok {
		m.submitTime = t
	}
	if t, ok := fixed.times[pidMessageDeliveryTime]; ok {
		m.deliveryTime = t
	}
	return nil
}

func (m *oleMessage) addRecipProp(storage string, entry *mscfb.File) error {
	id, typ, ok := parseStreamName(entry.Name)
	if !ok {
		return nil
	}
	m.sawMAPI = true
	data, err := m.readStream(entry)
	if err != nil {
		return err
	}
	s, ok := decodeStringProp(data, typ)
	if !ok {
		return nil
	}
	recip := m.recips[storage]
	if recip == nil {
		recip = &recipProps{}
		m.recips[storage] = recip
	}
	switch id {
	case pidDisplayName:
		recip.displayName = s
	case pidEmailAddress:
		recip.email = s
	case pidSmtpAddress:
		recip.smtp = s
	}
	return nil
}

func (m *oleMessage) addAttachProp(storage string, entry *mscfb.File) error {
	id, typ, ok := parseStreamName(entry.Name)
	if !ok {
		return nil
	}
	m.sawMAPI = true
	data, err := m.readStream(entry)
	if err != nil {
		return err
	}
	attach := m.attachs[storage]
	if attach == nil {
		attach = &attachProps{}
		m.attachs[storage] = attach
	}
	if id == pidAttachData && typ == typeBinary {
		attach.data = data
		attach.hasData = true
		return nil
	}
	s, ok := decodeStringProp(data, typ)
	if !ok {
		return nil
	}
	switch id {
	case pidAttachLongFilename:
		attach.longName = s
	case pidAttachFilename, pidDisplayName:
		if attach.name == "" {
			attach.name = s
		}
	case pidAttachMimeTag:
		attach.mimeTag = s
	}
	return nil
}

func (m *oleMessage) detail() *models.EmailDetail {
	headers := parseHeaderBlock(m.props[pidTransportHeaders])

	detail := &models.EmailDetail{
		Filename:   filepath.Base(m.path),
		Subject:    m.props[pidSubject],
		Sender:     m.sender(headers),
		Recipients: m.recipients(),
		Cc:         splitAddressList(m.props[pidDisplayCc], ";"),
		Bcc:        splitAddressList(m.props[pidDisplayBcc], ";"),
		Body:       m.props[pidBody],
		HTMLBody:   m.props[pidHTMLBody],
		MessageID:  m.props[pidMessageID],
		Headers:    headers,
		Size:       m.size,
	}
	if detail.Subject == "" {
		detail.Subject = defaultSubject
	}
	if detail.Recipients == nil {
		detail.Recipients = []string{}
	}
	if detail.HTMLBody == "" && looksLikeHTML(detail.Body) {
		detail.HTMLBody = detail.Body
	}

	if t := m.date(headers); !t.IsZero() {
		utc := t.UTC()
		detail.Date = &utc
	}

	detail.Attachments = m.attachments()
	return detail
}

// sender picks the best available sender representation, composing
// "Name <addr>" when both halves are present
func (m *oleMessage) sender(headers map[string]string) string {
	addr := m.props[pidSenderSMTP]
	if addr == "" {
		addr = m.props[pidSenderEmail]
	}
	name := m.props[pidSenderName]

	switch {
	case name != "" && addr != "" && name != addr:
		return name + " <" + addr + ">"
	case addr != "":
		return addr
	case name != "":
		return name
	}
	if from := headers["From"]; from != "" {
		return from
	}
	return defaultSender
}

func (m *oleMessage) recipients() []string {
	if len(m.recips) == 0 {
		return splitAddressList(m.props[pidDisplayTo], ";")
	}

	// Recipient storages are named __recip_version1.0_#NNNNNNNN; the
	// suffix preserves the original ordering.
	keys := make([]string, 0, len(m.recips))
	for key := range m.recips {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		recip := m.recips[key]
		switch {
		case recip.smtp != "":
			out = append(out, recip.smtp)
		case recip.email != "":
			out = append(out, recip.email)
		case recip.displayName != "":
			out = append(out, recip.displayName)
		}
	}
	return out
}

func (m *oleMessage) date(headers map[string]string) time.Time {
	if !m.submitTime.IsZero() {
		return m.submitTime
	}
	if !m.deliveryTime.IsZero() {
		return m.deliveryTime
	}
	if raw := headers["Date"]; raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (m *oleMessage) attachments() []models.Attachment {
	keys := make([]string, 0, len(m.attachs))
	for key := range m.attachs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]models.Attachment, 0, len(keys))
	for _, key := range keys {
		attach := m.attachs[key]
		out = append(out, models.Attachment{
			Filename:    attach.filename(),
			ContentType: attach.contentType(),
			Size:        int64(len(attach.data)),
		})
	}
	return out
}

func (m *oleMessage) attachmentData(name string) ([]byte, bool) {
	for _, attach := range m.attachs {
		if attach.filename() == name && attach.hasData {
			return attach.data, true
		}
	}
	return nil, false
}

func (a *attachProps) filename() string {
	if a.longName != "" {
		return a.longName
	}
	return a.name
}

func (a *attachProps) contentType() string {
	if a.mimeTag != "" {
		return a.mimeTag
	}
	return "application/octet-stream"
}
