package ldif

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"unicode/utf8"
)

const wrapColumn = 76

// Writer serializes records to RFC 2849 LDIF text, folding long lines
// at column 76 and base64-encoding any value that isn't safe as plain
// text.
type Writer struct {
	w            *bufio.Writer
	wroteVersion bool
	EmitVersion  bool
}

// NewWriter wraps w for LDIF writing. When EmitVersion is left at its
// default (false), no "version: 1" line is written; callers producing
// a full LDIF file per RFC 2849 should set it before the first call to
// WriteRecord.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteRecord appends one record.
func (wr *Writer) WriteRecord(rec Record) error {
	if wr.EmitVersion && !wr.wroteVersion {
		if _, err := wr.w.WriteString("version: 1\n"); err != nil {
			return err
		}
		wr.wroteVersion = true
	}

	if err := wr.writeField("dn", []byte(rec.DN)); err != nil {
		return err
	}

	if rec.IsChangeRecord() {
		if err := wr.writeField("changetype", []byte(rec.ChangeType)); err != nil {
			return err
		}
		if err := wr.writeChangeBody(rec); err != nil {
			return err
		}
	} else {
		for _, attr := range rec.Attributes {
			for _, v := range attr.Values {
				if err := wr.writeField(attr.Type, v); err != nil {
					return err
				}
			}
		}
	}

	if _, err := wr.w.WriteString("\n"); err != nil {
		return err
	}
	return nil
}

func (wr *Writer) writeChangeBody(rec Record) error {
	switch rec.ChangeType {
	case "add":
		for _, attr := range rec.Attributes {
			for _, v := range attr.Values {
				if err := wr.writeField(attr.Type, v); err != nil {
					return err
				}
			}
		}
	case "delete":
	case "modrdn", "moddn":
		if err := wr.writeField("newrdn", []byte(rec.NewRDN)); err != nil {
			return err
		}
		deleteOld := "0"
		if rec.DeleteOldRDN {
			deleteOld = "1"
		}
		if err := wr.writeField("deleteoldrdn", []byte(deleteOld)); err != nil {
			return err
		}
		if rec.NewSuperior != "" {
			if err := wr.writeField("newsuperior", []byte(rec.NewSuperior)); err != nil {
				return err
			}
		}
	case "modify":
		for i, spec := range rec.Modifications {
			if i > 0 {
				if _, err := wr.w.WriteString("-\n"); err != nil {
					return err
				}
			}
			if err := wr.writeField(modKeyword(spec.Op), []byte(spec.Type)); err != nil {
				return err
			}
			for _, v := range spec.Values {
				if err := wr.writeField(spec.Type, v); err != nil {
					return err
				}
			}
		}
		if len(rec.Modifications) > 0 {
			if _, err := wr.w.WriteString("-\n"); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("ldif: unsupported changetype %q", rec.ChangeType)
	}
	return nil
}

func modKeyword(op ModOp) string {
	switch op {
	case ModAdd:
		return "add"
	case ModDelete:
		return "delete"
	case ModReplace:
		return "replace"
	case ModIncrement:
		return "increment"
	default:
		return "add"
	}
}

// Flush flushes any buffered output to the underlying writer.
func (wr *Writer) Flush() error { return wr.w.Flush() }

func (wr *Writer) writeField(attr string, value []byte) error {
	var line string
	if needsBase64(value) {
		line = attr + ":: " + base64.StdEncoding.EncodeToString(value)
	} else {
		line = attr + ": " + string(value)
	}
	return wr.writeFolded(line)
}

// writeFolded emits line wrapped per RFC 2849: the first line may run
// to wrapColumn bytes, every continuation line starts with a single
// space and may itself run to wrapColumn.
func (wr *Writer) writeFolded(line string) error {
	if len(line) <= wrapColumn {
		_, err := wr.w.WriteString(line + "\n")
		return err
	}

	if _, err := wr.w.WriteString(line[:wrapColumn] + "\n"); err != nil {
		return err
	}
	rest := line[wrapColumn:]
	for len(rest) > 0 {
		n := wrapColumn - 1
		if n > len(rest) {
			n = len(rest)
		}
		if _, err := wr.w.WriteString(" " + rest[:n] + "\n"); err != nil {
			return err
		}
		rest = rest[n:]
	}
	return nil
}

// needsBase64 reports whether value must be base64-encoded per RFC
// 2849: not valid UTF-8, contains a NUL or control character other
// than plain printable text, or begins with a byte that would be
// ambiguous as plain SAFE-INIT-CHAR (space, ':', '<', or a high bit
// set byte).
func needsBase64(value []byte) bool {
	if len(value) == 0 {
		return false
	}
	if !utf8.Valid(value) {
		return true
	}
	switch value[0] {
	case ' ', ':', '<':
		return true
	}
	if value[0] >= 0x80 {
		return true
	}
	if value[len(value)-1] == ' ' {
		return true
	}
	for _, b := range value {
		if b == 0 || b == '\n' || b == '\r' || (b < 0x20 && b != '\t') {
			return true
		}
	}
	return false
}
