package ldif

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/oba-ldap/oba/internal/ldaperr"
)

// Reader reads LDIF records one at a time from an underlying stream,
// in the teacher's line-accumulate-then-classify style: lines are
// folded (continuation lines begin with a single space or tab) before
// being split into an attribute-or-dn "type:[:|<] value" pair.
type Reader struct {
	scanner   *bufio.Scanner
	version   int
	sawRecord bool
}

// NewReader wraps r for LDIF reading.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{scanner: scanner}
}

// ReadRecord reads and returns the next record, or io.EOF when the
// stream is exhausted.
func (rd *Reader) ReadRecord() (Record, error) {
	lines, err := rd.nextFoldedLines()
	if err != nil {
		return Record{}, err
	}
	if lines == nil {
		return Record{}, io.EOF
	}
	rd.sawRecord = true
	return parseRecordLines(lines)
}

// nextFoldedLines accumulates one record's worth of raw (unfolded)
// lines and returns them already joined across continuations, or nil
// at end of input. A blank line separates records; leading comment
// lines ('#') and a leading "version: 1" line are consumed and
// skipped outside of any record.
func (rd *Reader) nextFoldedLines() ([]string, error) {
	var folded []string
	haveContent := false

	for rd.scanner.Scan() {
		raw := rd.scanner.Text()

		if len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t') {
			if len(folded) == 0 {
				return nil, ldaperr.Decodef(0, "continuation line with no preceding line", nil)
			}
			folded[len(folded)-1] += raw[1:]
			continue
		}

		if strings.TrimSpace(raw) == "" {
			if haveContent {
				return folded, nil
			}
			continue
		}

		if strings.HasPrefix(raw, "#") {
			continue
		}

		if !rd.sawRecord && !haveContent && strings.HasPrefix(strings.ToLower(raw), "version:") {
			v, err := strconv.Atoi(strings.TrimSpace(raw[len("version:"):]))
			if err != nil {
				return nil, ldaperr.Decodef(0, "malformed version line", err)
			}
			rd.version = v
			continue
		}

		folded = append(folded, raw)
		haveContent = true
	}
	if err := rd.scanner.Err(); err != nil {
		return nil, ldaperr.IOError("reading LDIF stream", err)
	}
	if haveContent {
		return folded, nil
	}
	return nil, nil
}

// fieldValue is one parsed "type:value" / "type::base64" / "type:<url" line.
type fieldValue struct {
	attr string
	val  []byte
}

func parseField(line string) (fieldValue, error) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return fieldValue{}, ldaperr.Decodef(0, fmt.Sprintf("malformed LDIF line %q", line), nil)
	}
	attr := line[:colon]
	rest := line[colon+1:]

	switch {
	case strings.HasPrefix(rest, ":"):
		rest = strings.TrimSpace(rest[1:])
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return fieldValue{}, ldaperr.Decodef(0, fmt.Sprintf("invalid base64 value for %q", attr), err)
		}
		return fieldValue{attr: attr, val: decoded}, nil
	case strings.HasPrefix(rest, "<"):
		ref := strings.TrimSpace(rest[1:])
		data, err := readURLValue(ref)
		if err != nil {
			return fieldValue{}, err
		}
		return fieldValue{attr: attr, val: data}, nil
	default:
		return fieldValue{attr: attr, val: []byte(strings.TrimPrefix(rest, " "))}, nil
	}
}

func readURLValue(raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, ldaperr.Decodef(0, fmt.Sprintf("invalid URL value %q", raw), err)
	}
	if u.Scheme != "file" {
		return nil, ldaperr.Decodef(0, fmt.Sprintf("unsupported LDIF URL scheme %q", u.Scheme), nil)
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return nil, ldaperr.IOError(fmt.Sprintf("reading LDIF URL value %q", raw), err)
	}
	return data, nil
}

func parseRecordLines(lines []string) (Record, error) {
	if len(lines) == 0 {
		return Record{}, ldaperr.Decodef(0, "empty LDIF record", nil)
	}

	dnField, err := parseField(lines[0])
	if err != nil {
		return Record{}, err
	}
	if !strings.EqualFold(dnField.attr, "dn") {
		return Record{}, ldaperr.Decodef(0, "LDIF record does not begin with 'dn:'", nil)
	}
	rec := Record{DN: string(dnField.val)}

	rest := lines[1:]
	if len(rest) > 0 {
		first, err := parseField(rest[0])
		if err == nil && strings.EqualFold(first.attr, "changetype") {
			rec.ChangeType = strings.ToLower(strings.TrimSpace(string(first.val)))
			return parseChangeRecord(rec, rest[1:])
		}
	}

	attrs := map[string]int{}
	for _, line := range rest {
		f, err := parseField(line)
		if err != nil {
			return Record{}, err
		}
		if idx, ok := attrs[strings.ToLower(f.attr)]; ok {
			rec.Attributes[idx].Values = append(rec.Attributes[idx].Values, f.val)
			continue
		}
		attrs[strings.ToLower(f.attr)] = len(rec.Attributes)
		rec.Attributes = append(rec.Attributes, Attribute{Type: f.attr, Values: [][]byte{f.val}})
	}
	return rec, nil
}

func parseChangeRecord(rec Record, lines []string) (Record, error) {
	switch rec.ChangeType {
	case "add":
		attrs := map[string]int{}
		for _, line := range lines {
			f, err := parseField(line)
			if err != nil {
				return Record{}, err
			}
			key := strings.ToLower(f.attr)
			if idx, ok := attrs[key]; ok {
				rec.Attributes[idx].Values = append(rec.Attributes[idx].Values, f.val)
				continue
			}
			attrs[key] = len(rec.Attributes)
			rec.Attributes = append(rec.Attributes, Attribute{Type: f.attr, Values: [][]byte{f.val}})
		}
		return rec, nil

	case "delete":
		if len(lines) != 0 {
			return Record{}, ldaperr.Decodef(0, "changetype:delete record has extra lines", nil)
		}
		return rec, nil

	case "modrdn", "moddn":
		for _, line := range lines {
			f, err := parseField(line)
			if err != nil {
				return Record{}, err
			}
			switch strings.ToLower(f.attr) {
			case "newrdn":
				rec.NewRDN = string(f.val)
			case "deleteoldrdn":
				rec.DeleteOldRDN = strings.TrimSpace(string(f.val)) == "1"
			case "newsuperior":
				rec.NewSuperior = string(f.val)
			}
		}
		return rec, nil

	case "modify":
		return parseModifySpecs(rec, lines)

	default:
		return Record{}, ldaperr.Decodef(0, fmt.Sprintf("unsupported changetype %q", rec.ChangeType), nil)
	}
}

func parseModifySpecs(rec Record, lines []string) (Record, error) {
	var cur *ModSpec
	for _, line := range lines {
		if line == "-" {
			if cur != nil {
				rec.Modifications = append(rec.Modifications, *cur)
				cur = nil
			}
			continue
		}

		f, err := parseField(line)
		if err != nil {
			return Record{}, err
		}

		if cur == nil {
			op, ok := modOpFromKeyword(f.attr)
			if !ok {
				return Record{}, ldaperr.Decodef(0, fmt.Sprintf("expected add:/delete:/replace:/increment:, got %q", f.attr), nil)
			}
			cur = &ModSpec{Op: op, Type: string(f.val)}
			continue
		}

		cur.Values = append(cur.Values, f.val)
	}
	if cur != nil {
		rec.Modifications = append(rec.Modifications, *cur)
	}
	return rec, nil
}

func modOpFromKeyword(kw string) (ModOp, bool) {
	switch strings.ToLower(kw) {
	case "add":
		return ModAdd, true
	case "delete":
		return ModDelete, true
	case "replace":
		return ModReplace, true
	case "increment":
		return ModIncrement, true
	default:
		return 0, false
	}
}
