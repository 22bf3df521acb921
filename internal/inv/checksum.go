package inv

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Checksum fingerprints an ordered record list. The records are serialized
// with the artifact encoder and folded through h = h*31 + b with 32-bit
// wraparound. It is an integrity tripwire, not a security control.
func Checksum(records []Record) string {
	data, err := encodeRecords(records)
	if err != nil {
		// Every Value kind is encodable; an error here means a corrupt Value.
		data = []byte(err.Error())
	}
	var h uint32
	for _, b := range data {
		h = h*31 + uint32(b)
	}
	return fmt.Sprintf("%08x", h)
}

// encodeRecords is the single serialization shared by export and verification.
func encodeRecords(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		id, err := jsonString(r.ID)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`{"id":`)
		buf.Write(id)
		buf.WriteString(`,"fields":`)
		if err := r.Fields.encode(&buf); err != nil {
			return nil, fmt.Errorf("encoding record %s: %w", r.ID, err)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func jsonString(s string) ([]byte, error) {
	return json.Marshal(s)
}
