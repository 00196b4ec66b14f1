package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/hctorder/pkg/counterbalance"
)

var fixedTime = time.Date(2026, 10, 14, 9, 45, 30, 0, time.UTC)

func fixedID() string { return "11111111-2222-3333-4444-555555555555" }

func testRecord(t *testing.T, md Metadata) Record {
	t.Helper()
	a := counterbalance.Found("001", [3]int{30, 45, 55})
	rec, err := Synthesize(a, md, fixedTime, WithSessionIDs(fixedID))
	require.NoError(t, err)
	return rec
}

func TestSynthesize(t *testing.T) {
	t.Run("builds a record from a found assignment", func(t *testing.T) {
		md := Metadata{LabNumber: "4", Experimenter: "Ana", StartTime: "2026-10-14 09:00", EndTime: "2026-10-14 09:40"}
		rec := testRecord(t, md)

		assert.Equal(t, fixedID(), rec.SessionID)
		assert.Equal(t, counterbalance.CanonicalID("001"), rec.ID)
		assert.Equal(t, DefaultExperimentOrder, rec.ExperimentOrder)
		assert.Equal(t, [3]int{30, 45, 55}, rec.Order)
		assert.Equal(t, "30 → 45 → 55", rec.HCTOrder)
		assert.Equal(t, md, rec.Metadata)
		assert.Equal(t, "2026-10-14 09:45:30", rec.Timestamp())
	})

	t.Run("custom experiment order label", func(t *testing.T) {
		rec, err := Synthesize(counterbalance.Found("002", [3]int{1, 2, 3}), Metadata{}, fixedTime, WithExperimentOrder("Rest → HCT"))
		require.NoError(t, err)
		assert.Equal(t, "Rest → HCT", rec.ExperimentOrder)
		assert.NotEmpty(t, rec.SessionID)
	})

	t.Run("refuses a NotFound assignment", func(t *testing.T) {
		_, err := Synthesize(counterbalance.NotFound("999"), Metadata{}, fixedTime)
		assert.ErrorIs(t, err, ErrSynthesisPrecondition)
	})
}

func TestEncodeCSV(t *testing.T) {
	rec := testRecord(t, Metadata{LabNumber: "4", Experimenter: `Dr "K" Smith, PhD`, StartTime: "09:00", EndTime: "09:40"})
	out := EncodeCSV(rec)

	t.Run("starts with a byte-order mark", func(t *testing.T) {
		assert.True(t, bytes.HasPrefix(out, UTF8BOM))
	})

	t.Run("has a seven column header and one data row", func(t *testing.T) {
		rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(out, UTF8BOM))).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"ID", "ExperimentOrder", "HCT_Order", "StartDateTime", "EndDateTime", "LabNumber", "Experimenter"}, rows[0])
		require.Len(t, rows[1], 7)
		assert.Equal(t, "001", rows[1][0])
		assert.Equal(t, "30 → 45 → 55", rows[1][2])
		assert.Equal(t, `Dr "K" Smith, PhD`, rows[1][6])
	})

	t.Run("quotes the order and escapes quotes", func(t *testing.T) {
		text := string(out)
		assert.Contains(t, text, `001,"`+DefaultExperimentOrder+`","30 → 45 → 55",09:00,09:40,4,"Dr ""K"" Smith, PhD"`)
	})
}

func TestParams(t *testing.T) {
	rec := testRecord(t, Metadata{LabNumber: "Lab_2 #5", Experimenter: "O'Neil & Co 100%", StartTime: "2026-10-14 09:00", EndTime: "2026-10-14 09:40"})
	p := Params(rec)

	t.Run("contains every parameter key", func(t *testing.T) {
		for _, key := range ParameterKeys {
			assert.Contains(t, p, key)
		}
		assert.Len(t, p, len(ParameterKeys))
	})

	t.Run("escapes free text", func(t *testing.T) {
		assert.Equal(t, `Lab\_2 \#5`, p[ParamLabNumber])
		assert.Equal(t, `O'Neil \& Co 100\%`, p[ParamExperimenterName])
	})

	t.Run("escapes a configured order label", func(t *testing.T) {
		a := counterbalance.Found("001", [3]int{30, 45, 55})
		rec, err := Synthesize(a, Metadata{}, fixedTime, WithSessionIDs(fixedID), WithExperimentOrder("A & B 50%"))
		require.NoError(t, err)
		assert.Equal(t, `A \& B 50\%`, Params(rec)[ParamExperimentOrder])
		assert.Equal(t, "A & B 50%", rec.ExperimentOrder)
		assert.Equal(t, DefaultExperimentOrder, p[ParamExperimentOrder])
	})

	t.Run("leaves generated values alone", func(t *testing.T) {
		assert.Equal(t, "001", p[ParamSubjectID])
		assert.Equal(t, "30 → 45 → 55", p[ParamHCTOrder])
		assert.Equal(t, "2026-10-14 09:45:30", p[ParamOutputTimestamp])
		assert.Equal(t, "2026-10-14 09:00", p[ParamStartTime])
	})

	t.Run("encodes as ordered yaml", func(t *testing.T) {
		data, err := p.EncodeYAML()
		require.NoError(t, err)

		var decoded map[string]string
		require.NoError(t, yaml.Unmarshal(data, &decoded))
		assert.Equal(t, map[string]string(p), decoded)
		assert.True(t, bytes.HasPrefix(data, []byte("subject_id: \"001\"\n")), string(data))
	})
}

func TestBundle(t *testing.T) {
	rec := testRecord(t, Metadata{LabNumber: "4", Experimenter: "Ana"})

	t.Run("without template", func(t *testing.T) {
		out, err := Bundle(rec, nil, "")
		require.NoError(t, err)
		assert.NotEmpty(t, out.CSV)
		assert.NotEmpty(t, out.ParamsYAML)
		assert.Nil(t, out.Document)
		assert.Equal(t, rec, out.Record)
	})

	t.Run("with template", func(t *testing.T) {
		tmpl, err := ParseTemplate("report.Rmd", []byte("---\ntitle: HCT\n---\nBody\n"))
		require.NoError(t, err)
		out, err := Bundle(rec, tmpl, "")
		require.NoError(t, err)
		assert.Contains(t, string(out.Document), "date: 14 October 2026")
		assert.Contains(t, string(out.Document), "\n---\nBody\n")
	})

	t.Run("empty record is rejected", func(t *testing.T) {
		_, err := Bundle(Record{}, nil, "")
		assert.ErrorIs(t, err, ErrSynthesisPrecondition)
	})
}
