package dfb

import (
	"bytes"

	"github.com/flowrt/flow-runtime/diag"
)

// ScanExpectations extracts the expected diagnostics embedded in a DFB
// image. The walk is deliberately lenient: negative test inputs are
// malformed on purpose, and their expectations must still be recoverable,
// so any undecodable byte simply ends the scan with whatever was
// collected so far.
func ScanExpectations(data []byte) []diag.Expectation {
	if len(data) < 8 || !bytes.Equal(data[:4], Magic[:]) {
		return nil
	}
	r := bytes.NewReader(data[8:])

	var expects []diag.Expectation
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return expects
		}
		size, err := readLEBu(r)
		if err != nil || int(size) > r.Len() {
			return expects
		}
		payload := make([]byte, size)
		if _, err := r.Read(payload); err != nil {
			return expects
		}
		if id != sectionExpects {
			continue
		}

		sr := bytes.NewReader(payload)
		count, err := readLEBu(sr)
		if err != nil {
			return expects
		}
		for i := uint32(0); i < count; i++ {
			sev, err := sr.ReadByte()
			if err != nil {
				return expects
			}
			line, err := readLEBu(sr)
			if err != nil {
				return expects
			}
			n, err := readLEBu(sr)
			if err != nil || int(n) > sr.Len() {
				return expects
			}
			msg := make([]byte, n)
			if _, err := sr.Read(msg); err != nil {
				return expects
			}
			expects = append(expects, diag.Expectation{
				Severity: diag.Severity(sev),
				Line:     int(line),
				Message:  string(msg),
			})
		}
	}
	return expects
}
