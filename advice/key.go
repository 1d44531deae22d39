// Package advice produces short precaution sentences for calendar events that
// follow medication doses, memoized by the semantic content of each request.
package advice

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DescriptionPrefix is how much of an event description feeds the key and prompt
const DescriptionPrefix = 256

// Context is everything a piece of advice depends on
type Context struct {
	EventID     string
	EventStart  time.Time
	Title       string
	Description string
	Medications []string
	Model       string
	Endpoint    string
}

// keyVersion leads every hashed key so a change of encoding changes all keys
const keyVersion = "advice-key/v1"

// Key derives the cache key of a context. Identical contexts map to the same
// key in every process; any change to a prompt input changes the key. Fields
// are hashed as length-prefixed raw bytes in a fixed order, so strings that
// are not valid UTF-8 still hash apart.
func Key(c Context) string {
	h := sha256.New()
	writeField(h, keyVersion)
	writeField(h, c.EventID)
	writeField(h, strconv.FormatInt(c.EventStart.Unix(), 10))
	writeField(h, c.Title)
	writeField(h, truncateRunes(c.Description, DescriptionPrefix))

	meds := UniqueSorted(c.Medications)
	writeField(h, strconv.Itoa(len(meds)))
	for _, m := range meds {
		writeField(h, m)
	}

	writeField(h, c.Model)
	writeField(h, c.Endpoint)

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	w.Write(binary.AppendUvarint(nil, uint64(len(s))))
	io.WriteString(w, s)
}

// UniqueSorted returns the distinct non-empty names in sorted order
func UniqueSorted(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}

	slices.Sort(out)
	return slices.Compact(out)
}

// truncateRunes keeps the first n runes of s without re-encoding it. Each
// invalid byte counts as one rune and is kept as is.
func truncateRunes(s string, n int) string {
	offset := 0
	for i := 0; i < n && offset < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}

	return s[:offset]
}
