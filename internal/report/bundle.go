package report

import (
	"fmt"
)

// DefaultDateLayout formats the document date written into an editable template.
const DefaultDateLayout = "2 January 2006"

// Outputs holds every rendering of one Record. It is built entirely in memory
// so callers can persist all of it or none of it.
type Outputs struct {
	Record     Record
	CSV        []byte
	Params     Parameters
	ParamsYAML []byte
	// Document is the editable template with merged front matter; nil without a template.
	Document []byte
}

// Bundle renders r into all outputs. tmpl may be nil. dateLayout defaults to
// DefaultDateLayout. Any failure returns no outputs at all.
func Bundle(r Record, tmpl *Template, dateLayout string) (Outputs, error) {
	if r.ID == "" || r.HCTOrder == "" {
		return Outputs{}, ErrSynthesisPrecondition
	}
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}

	params := Params(r)
	paramsYAML, err := params.EncodeYAML()
	if err != nil {
		return Outputs{}, err
	}

	out := Outputs{
		Record:     r,
		CSV:        EncodeCSV(r),
		Params:     params,
		ParamsYAML: paramsYAML,
	}

	if tmpl != nil {
		doc, err := tmpl.Merge(params, r.GeneratedAt.Format(dateLayout))
		if err != nil {
			return Outputs{}, fmt.Errorf("report: render template: %w", err)
		}
		out.Document = doc
	}

	return out, nil
}
