package report

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"panelfit/domain/panel"
	"panelfit/domain/results"
)

// Fingerprint hashes the encoded result table. Two runs over the same
// input and configuration produce the same value.
func Fingerprint(schema panel.Schema, records []results.ResultRecord) uint64 {
	d := xxhash.New()
	writeRow(d, results.Header(schema))
	for _, r := range records {
		writeRow(d, r.Row())
	}
	return d.Sum64()
}

// FormatFingerprint renders a fingerprint as fixed-width hex.
func FormatFingerprint(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

func writeRow(d *xxhash.Digest, fields []string) {
	// Unit separator cannot occur in variable names or numbers.
	_, _ = d.WriteString(strings.Join(fields, "\x1f"))
	_, _ = d.WriteString("\n")
}
