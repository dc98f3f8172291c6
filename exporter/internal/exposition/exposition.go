package exposition

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"google.golang.org/protobuf/proto"

	"github.com/restexporter/restexporter/exporter/internal/scraper"
)

// ContentType is the content type of the text exposition format.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// Families groups numeric samples into untyped metric families, in order of
// first appearance. Text samples and samples with names that are not valid
// Prometheus names are dropped.
func Families(samples []scraper.Sample) []*dto.MetricFamily {
	var (
		out   []*dto.MetricFamily
		index = make(map[string]*dto.MetricFamily)
	)
	for _, s := range samples {
		if s.IsText {
			continue
		}
		if !model.IsValidMetricName(model.LabelValue(s.Name)) {
			slog.Debug("exposition: skipping invalid metric name", "name", s.Name)
			continue
		}
		mf, ok := index[s.Name]
		if !ok {
			mf = &dto.MetricFamily{
				Name: proto.String(s.Name),
				Type: dto.MetricType_UNTYPED.Enum(),
			}
			index[s.Name] = mf
			out = append(out, mf)
		}
		m := &dto.Metric{Untyped: &dto.Untyped{Value: proto.Float64(s.Value)}}
		for _, l := range s.Labels {
			if !model.LabelName(l.Name).IsValid() {
				continue
			}
			m.Label = append(m.Label, &dto.LabelPair{
				Name:  proto.String(l.Name),
				Value: proto.String(l.Value),
			})
		}
		mf.Metric = append(mf.Metric, m)
	}
	return out
}

// Write renders samples followed by comments. Every comment line is prefixed
// with "# ", so multi-line messages stay comments.
func Write(w io.Writer, samples []scraper.Sample, comments []string) error {
	for _, mf := range Families(samples) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("exposition: write %s: %w", mf.GetName(), err)
		}
	}
	return WriteComments(w, comments)
}

// WriteComments writes each comment as one or more "# " lines.
func WriteComments(w io.Writer, comments []string) error {
	for _, c := range comments {
		for _, line := range strings.Split(strings.TrimRight(c, "\n"), "\n") {
			if _, err := fmt.Fprintf(w, "# %s\n", line); err != nil {
				return fmt.Errorf("exposition: write comment: %w", err)
			}
		}
	}
	return nil
}
