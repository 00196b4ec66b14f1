package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const rmdTemplate = `---
title: "Heartbeat Counting Task"
author: Lab
date: "` + "`r Sys.Date()`" + `"
params:
  subject_id: ""
  hct_order:
    label: "Trial order"
    value: ""
output: pdf_document
---

` + "```{r}" + `
params$subject_id
` + "```" + `

---

Footer stays.
`

func TestParseTemplate(t *testing.T) {
	t.Run("splits front matter and body", func(t *testing.T) {
		tmpl, err := ParseTemplate("report.Rmd", []byte(rmdTemplate))
		require.NoError(t, err)

		title, ok := tmpl.Field("title")
		require.True(t, ok)
		assert.Equal(t, "Heartbeat Counting Task", title)
		assert.True(t, strings.HasPrefix(string(tmpl.Body()), "\n```{r}"))
		assert.True(t, strings.HasSuffix(string(tmpl.Body()), "---\n\nFooter stays.\n"))
		assert.Equal(t, "report.Rmd", tmpl.Name())
	})

	t.Run("accepts a yaml end marker", func(t *testing.T) {
		tmpl, err := ParseTemplate("t", []byte("---\na: 1\n...\nbody"))
		require.NoError(t, err)
		assert.Equal(t, "body", string(tmpl.Body()))
	})

	t.Run("accepts empty front matter", func(t *testing.T) {
		tmpl, err := ParseTemplate("t", []byte("---\n---\nbody\n"))
		require.NoError(t, err)
		assert.Equal(t, "body\n", string(tmpl.Body()))
	})

	t.Run("ignores a leading byte order mark", func(t *testing.T) {
		tmpl, err := ParseTemplate("t", []byte("\ufeff---\ntitle: x\n---\nbody\n"))
		require.NoError(t, err)
		title, ok := tmpl.Field("title")
		require.True(t, ok)
		assert.Equal(t, "x", title)
		assert.Equal(t, "body\n", string(tmpl.Body()))

		out, err := tmpl.Merge(Parameters{ParamSubjectID: "001"}, "14 October 2026")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(out), "---\n"), string(out))
	})

	t.Run("missing opening fence", func(t *testing.T) {
		for _, src := range []string{"", "title: x\n---\n", "# Heading\n"} {
			_, err := ParseTemplate("t", []byte(src))
			require.ErrorIs(t, err, ErrMissingFrontMatter, src)

			var tmplErr *TemplateError
			assert.True(t, errors.As(err, &tmplErr))
		}
	})

	t.Run("missing closing fence", func(t *testing.T) {
		_, err := ParseTemplate("t", []byte("---\ntitle: x\nbody without end\n"))
		assert.ErrorIs(t, err, ErrMalformedFrontMatter)

		_, err = ParseTemplate("t", []byte("---"))
		assert.ErrorIs(t, err, ErrMalformedFrontMatter)
	})

	t.Run("front matter must be a mapping", func(t *testing.T) {
		_, err := ParseTemplate("t", []byte("---\n- a\n- b\n---\n"))
		assert.ErrorIs(t, err, ErrMalformedFrontMatter)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseTemplate("t", []byte("---\ntitle: [unclosed\n---\n"))
		assert.ErrorIs(t, err, ErrMalformedFrontMatter)
	})

	t.Run("params must be a mapping", func(t *testing.T) {
		_, err := ParseTemplate("t", []byte("---\nparams: 3\n---\n"))
		assert.ErrorIs(t, err, ErrMalformedFrontMatter)
	})
}

func TestTemplateMerge(t *testing.T) {
	tmpl, err := ParseTemplate("report.Rmd", []byte(rmdTemplate))
	require.NoError(t, err)

	params := Parameters{
		ParamSubjectID:        "001",
		ParamExperimentOrder:  DefaultExperimentOrder,
		ParamStartTime:        "2026-10-14 09:00",
		ParamEndTime:          "2026-10-14 09:40",
		ParamLabNumber:        "4",
		ParamHCTOrder:         "30 → 45 → 55",
		ParamOutputTimestamp:  "2026-10-14 09:45:30",
		ParamExperimenterName: `O'Neil \& Co`,
	}
	out, err := tmpl.Merge(params, "14 October 2026")
	require.NoError(t, err)

	merged, err := ParseTemplate("merged", out)
	require.NoError(t, err)

	t.Run("body is preserved verbatim", func(t *testing.T) {
		assert.Equal(t, string(tmpl.Body()), string(merged.Body()))
	})

	t.Run("parameters and date are written", func(t *testing.T) {
		date, ok := merged.Field("date")
		require.True(t, ok)
		assert.Equal(t, "14 October 2026", date)

		for key, want := range params {
			got, ok := merged.Param(key)
			require.True(t, ok, key)
			assert.Equal(t, want, got, key)
		}
	})

	t.Run("value form parameters keep their label", func(t *testing.T) {
		var front struct {
			Params map[string]yaml.Node `yaml:"params"`
		}
		head := strings.SplitN(string(out), "\n---\n", 2)[0]
		require.NoError(t, yaml.Unmarshal([]byte(strings.TrimPrefix(head, "---\n")), &front))
		order := front.Params[ParamHCTOrder]
		var decoded map[string]string
		require.NoError(t, order.Decode(&decoded))
		assert.Equal(t, "Trial order", decoded["label"])
		assert.Equal(t, "30 → 45 → 55", decoded["value"])
	})

	t.Run("other keys keep their order", func(t *testing.T) {
		text := string(out)
		title := strings.Index(text, "title:")
		author := strings.Index(text, "author:")
		output := strings.Index(text, "output:")
		assert.True(t, title < author && author < output, text)
		assert.Contains(t, text, "output: pdf_document")
	})

	t.Run("template is not modified", func(t *testing.T) {
		value, ok := tmpl.Param(ParamSubjectID)
		require.True(t, ok)
		assert.Equal(t, "", value)
	})

	t.Run("creates params when the template has none", func(t *testing.T) {
		bare, err := ParseTemplate("bare", []byte("---\ntitle: x\n---\nbody\n"))
		require.NoError(t, err)
		out, err := bare.Merge(Parameters{ParamSubjectID: "007"}, "1 May 2026")
		require.NoError(t, err)
		again, err := ParseTemplate("again", out)
		require.NoError(t, err)
		id, ok := again.Param(ParamSubjectID)
		require.True(t, ok)
		assert.Equal(t, "007", id)
	})

	t.Run("keeps CRLF line endings", func(t *testing.T) {
		crlf, err := ParseTemplate("crlf", []byte("---\r\ntitle: x\r\n---\r\nbody\r\n"))
		require.NoError(t, err)
		out, err := crlf.Merge(Parameters{ParamSubjectID: "007"}, "d")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(out), "---\r\ntitle: x\r\n"), string(out))
		assert.True(t, strings.HasSuffix(string(out), "---\r\nbody\r\n"))
	})
}
