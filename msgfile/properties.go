package msgfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/richardlehane/mscfb"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// MAPI property types carried in stream name suffixes
const (
	typeString8 = 0x001E // 8-bit string in the message codepage
	typeUnicode = 0x001F // UTF-16LE
	typeBinary  = 0x0102
	typeSystime = 0x0040
)

// The fixed-size properties stream starts with a header whose length
// depends on the storage depth; only the top-level header is needed here.
const topLevelHeaderLen = 32

const fixedPropLen = 16

// parseStreamName extracts property id and type from a
// __substg1.0_XXXXTTTT stream name
func parseStreamName(name string) (id uint16, typ uint16, ok bool) {
	if !strings.HasPrefix(name, substgPrefix) {
		return 0, 0, false
	}
	hex := name[len(substgPrefix):]
	if len(hex) != 8 {
		return 0, 0, false
	}
	idVal, err := strconv.ParseUint(hex[:4], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	typVal, err := strconv.ParseUint(hex[4:], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(idVal), uint16(typVal), true
}

// readStream drains one compound-file stream. The declared size comes
// straight from the directory entry and is not validated by the CFB
// reader, so it is clamped against the container's on-disk size before
// anything is allocated. Short reads are tolerated; lying sizes are not.
func readStream(entry *mscfb.File, limit int64) ([]byte, error) {
	if entry.Size <= 0 {
		return nil, nil
	}
	if entry.Size > limit {
		return nil, fmt.Errorf("stream %s declares %d bytes in a %d byte container", entry.Name, entry.Size, limit)
	}
	buf := make([]byte, entry.Size)
	n, err := io.ReadFull(entry, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, nil
	}
	return buf[:n], nil
}

// decodeStringProp decodes a property stream into a string based on its
// declared type. Binary HTML bodies are decoded as 8-bit text.
func decodeStringProp(data []byte, typ uint16) (string, bool) {
	switch typ {
	case typeUnicode:
		return decodeUTF16(data), true
	case typeString8, typeBinary:
		return decode8Bit(data), true
	}
	return "", false
}

func decodeUTF16(data []byte) string {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

// decode8Bit decodes an 8-bit string tolerantly: valid UTF-8 passes
// through, otherwise the charset is sniffed with windows-1252 as the
// final fallback. Bad bytes never fail the parse.
func decode8Bit(data []byte) string {
	data = trimNul(data)
	if len(data) == 0 {
		return ""
	}
	if utf8.Valid(data) {
		return string(data)
	}
	if enc, _, certain := charset.DetermineEncoding(data, ""); certain && enc != nil {
		if out, err := enc.NewDecoder().Bytes(data); err == nil {
			return string(out)
		}
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}

func trimNul(data []byte) []byte {
	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return data
}

// fixedProperties holds values decoded from a __properties_version1.0 stream
type fixedProperties struct {
	times map[uint16]time.Time
}

// parseFixedProperties walks the 16-byte records of the fixed property
// stream, collecting PT_SYSTIME values (submit and delivery times)
func parseFixedProperties(data []byte, headerLen int) *fixedProperties {
	fixed := &fixedProperties{times: make(map[uint16]time.Time)}
	if len(data) < headerLen {
		return fixed
	}
	data = data[headerLen:]

	for off := 0; off+fixedPropLen <= len(data); off += fixedPropLen {
		tag := binary.LittleEndian.Uint32(data[off:])
		typ := uint16(tag)
		id := uint16(tag >> 16)
		if typ != typeSystime {
			continue
		}
		ft := binary.LittleEndian.Uint64(data[off+8:])
		if t := filetimeToTime(ft); !t.IsZero() {
			fixed.times[id] = t
		}
	}
	return fixed
}

// filetimeToTime converts a Windows FILETIME (100ns ticks since
// 1601-01-01 UTC) to a time.Time
func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	const epochDelta = 11644473600 // seconds between 1601 and 1970
	secs := int64(ft/10_000_000) - epochDelta
	nsecs := int64(ft%10_000_000) * 100
	if secs < 0 {
		return time.Time{}
	}
	return time.Unix(secs, nsecs).UTC()
}

// parseHeaderBlock decodes a transport-header blob into a flat map,
// keeping the first value per key. Malformed tails are dropped.
func parseHeaderBlock(raw string) map[string]string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	reader := textproto.NewReader(bufio.NewReader(strings.NewReader(raw + "\r\n\r\n")))
	mimeHeader, err := reader.ReadMIMEHeader()
	if len(mimeHeader) == 0 && err != nil {
		return nil
	}

	headers := make(map[string]string, len(mimeHeader))
	for key, values := range mimeHeader {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}
