package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strconv"
)

// Fingerprint returns a stable hash of docs. It changes whenever any
// document or config changes, or the order of documents changes.
func Fingerprint(docs []Document) string {
	h := sha256.New()

	for _, d := range docs {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write([]byte(d.Brand))
		h.Write([]byte{0})
		h.Write([]byte(d.Name))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(d.Price, 'g', -1, 64)))
		h.Write([]byte{0})
		writeSpecs(h, d.Specs)

		for _, c := range d.Configs {
			h.Write([]byte{1})
			h.Write([]byte(c.ID))
			h.Write([]byte{0})
			h.Write([]byte(c.Name))
			h.Write([]byte{0})
			h.Write([]byte(strconv.FormatFloat(c.Price, 'g', -1, 64)))
			h.Write([]byte{0})
			writeSpecs(h, c.Specs)
		}
		h.Write([]byte{2})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// writeSpecs hashes specs in key order. encoding/json sorts map keys.
func writeSpecs(h io.Writer, specs map[string]any) {
	if len(specs) == 0 {
		_, _ = h.Write([]byte{0})
		return
	}
	data, err := json.Marshal(specs)
	if err != nil {
		_, _ = h.Write([]byte("unhashable"))
	} else {
		_, _ = h.Write(data)
	}
	_, _ = h.Write([]byte{0})
}
