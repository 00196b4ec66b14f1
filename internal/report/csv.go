package report

import (
	"bytes"
	"strings"
)

// UTF8BOM prefixes CSV output so spreadsheet tools detect the encoding.
var UTF8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVColumns is the fixed column order of the delimited record.
var CSVColumns = []string{
	"ID",
	"ExperimentOrder",
	"HCT_Order",
	"StartDateTime",
	"EndDateTime",
	"LabNumber",
	"Experimenter",
}

// CSVRow returns the record's values in CSVColumns order.
func (r Record) CSVRow() []string {
	return []string{
		r.ID.String(),
		r.ExperimentOrder,
		r.HCTOrder,
		r.Metadata.StartTime,
		r.Metadata.EndTime,
		r.Metadata.LabNumber,
		r.Metadata.Experimenter,
	}
}

// EncodeCSV renders the record as a BOM-prefixed, comma-delimited header and
// single data row. Fields containing a comma, quote, line break or whitespace
// are quoted, with embedded quotes doubled.
func EncodeCSV(r Record) []byte {
	var buf bytes.Buffer
	buf.Write(UTF8BOM)
	writeCSVLine(&buf, CSVColumns)
	writeCSVLine(&buf, r.CSVRow())
	return buf.Bytes()
}

func writeCSVLine(buf *bytes.Buffer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if !needsQuotes(field) {
			buf.WriteString(field)
			continue
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}

func needsQuotes(field string) bool {
	return strings.ContainsAny(field, ",\"\r\n \t")
}
