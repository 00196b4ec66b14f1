package report

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/hctorder/internal/latex"
)

// Template parameter names consumed by the report template.
const (
	ParamSubjectID        = "subject_id"
	ParamExperimentOrder  = "experiment_order"
	ParamStartTime        = "start_time"
	ParamEndTime          = "end_time"
	ParamLabNumber        = "lab_number"
	ParamHCTOrder         = "hct_order"
	ParamOutputTimestamp  = "output_timestamp"
	ParamExperimenterName = "experimenter_name"
)

// ParameterKeys lists every parameter in the order it is written out.
var ParameterKeys = []string{
	ParamSubjectID,
	ParamExperimentOrder,
	ParamStartTime,
	ParamEndTime,
	ParamLabNumber,
	ParamHCTOrder,
	ParamOutputTimestamp,
	ParamExperimenterName,
}

// Parameters maps template parameter names to markup-safe values.
type Parameters map[string]string

// Params builds the template parameter set. Free-text metadata and the
// configured order label are LaTeX escaped; the ID, order and timestamp are
// generated here and are already safe. Start and end times are escaped too,
// which leaves well-formed timestamps unchanged.
func Params(r Record) Parameters {
	return Parameters{
		ParamSubjectID:        r.ID.String(),
		ParamExperimentOrder:  latex.Escape(r.ExperimentOrder),
		ParamStartTime:        latex.Escape(r.Metadata.StartTime),
		ParamEndTime:          latex.Escape(r.Metadata.EndTime),
		ParamLabNumber:        latex.Escape(r.Metadata.LabNumber),
		ParamHCTOrder:         r.HCTOrder,
		ParamOutputTimestamp:  r.Timestamp(),
		ParamExperimenterName: latex.Escape(r.Metadata.Experimenter),
	}
}

// node renders the parameters as a YAML mapping in ParameterKeys order.
// Keys outside ParameterKeys are not emitted.
func (p Parameters) node() *yaml.Node {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range ParameterKeys {
		value, ok := p[key]
		if !ok {
			continue
		}
		mapping.Content = append(mapping.Content, stringNode(key), stringNode(value))
	}
	return mapping
}

// EncodeYAML writes the parameters as a standalone YAML document for renderers
// that take parameters from a file.
func (p Parameters) EncodeYAML() ([]byte, error) {
	data, err := yaml.Marshal(p.node())
	if err != nil {
		return nil, fmt.Errorf("report: encode params: %w", err)
	}
	return data, nil
}

func stringNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
