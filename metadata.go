package strm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultMetadataName is the sidecar file written by Extract.
const DefaultMetadataName = "metadata.txt"

// MetadataRecord is one line of the metadata sidecar.
type MetadataRecord struct {
	InnerPath string
	SkinFlag  SkinFlag
	Unknown   uint16
}

// ReadMetadata parses a sidecar with one "InnerPath;SkinFlag;Unknown" record
// per line. Blank lines are ignored. The path may itself contain semicolons;
// the numeric fields are taken from the end of the line.
func ReadMetadata(r io.Reader) ([]MetadataRecord, error) {
	var records []MetadataRecord
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, err := parseMetadataLine(text)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", ErrMetadata, line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func parseMetadataLine(text string) (MetadataRecord, error) {
	rest, unknownField, ok := cutLast(text, ";")
	if !ok {
		return MetadataRecord{}, fmt.Errorf("want 3 fields in %q", text)
	}
	innerPath, flagField, ok := cutLast(rest, ";")
	if !ok {
		return MetadataRecord{}, fmt.Errorf("want 3 fields in %q", text)
	}
	if innerPath == "" {
		return MetadataRecord{}, fmt.Errorf("empty inner path")
	}

	flag, err := strconv.ParseInt(strings.TrimSpace(flagField), 10, 16)
	if err != nil {
		return MetadataRecord{}, fmt.Errorf("skin flag %q: %w", flagField, err)
	}
	if SkinFlag(flag).IsLookup() {
		return MetadataRecord{}, fmt.Errorf("skin flag %d is a lookup sentinel", flag)
	}
	unknown, err := strconv.ParseUint(strings.TrimSpace(unknownField), 10, 16)
	if err != nil {
		return MetadataRecord{}, fmt.Errorf("unknown field %q: %w", unknownField, err)
	}
	return MetadataRecord{
		InnerPath: innerPath,
		SkinFlag:  SkinFlag(flag),
		Unknown:   uint16(unknown),
	}, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// WriteMetadata writes records in the format read by ReadMetadata.
func WriteMetadata(w io.Writer, records []MetadataRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if strings.ContainsAny(rec.InnerPath, "\r\n") {
			return fmt.Errorf("%w: inner path %q contains a line break", ErrMetadata, rec.InnerPath)
		}
		if _, err := fmt.Fprintf(bw, "%s;%d;%d\n", rec.InnerPath, rec.SkinFlag, rec.Unknown); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Metadata returns one record per entry, in order.
func (a *Archive) Metadata() []MetadataRecord {
	records := make([]MetadataRecord, 0, len(a.entries))
	for _, e := range a.entries {
		records = append(records, MetadataRecord{
			InnerPath: e.Header.InnerPath,
			SkinFlag:  e.Header.SkinFlag,
			Unknown:   e.Header.Unknown,
		})
	}
	return records
}
