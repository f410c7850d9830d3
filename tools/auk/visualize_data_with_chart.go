package auk

import (
	"github.com/effective-security/auk/tools"
)

// VisualizeDataWithChartName is the name of the chart tool
const VisualizeDataWithChartName = "visualize_data_with_chart"

// ChartType is the type of chart to render
type ChartType string

const (
	ChartLine      ChartType = "line"
	ChartBar       ChartType = "bar"
	ChartPie       ChartType = "pie"
	ChartScatter   ChartType = "scatter"
	ChartArea      ChartType = "area"
	ChartRadar     ChartType = "radar"
	ChartHeatmap   ChartType = "heatmap"
	ChartHistogram ChartType = "histogram"
)

// XAxis configures the X axis
type XAxis struct {
	Label string `json:"label" yaml:"label" jsonschema:"description=X-axis label"`
	Field string `json:"field" yaml:"field" jsonschema:"description=Data field for X-axis"`
}

// YAxis configures the Y axis
type YAxis struct {
	Label string `json:"label" yaml:"label" jsonschema:"description=Y-axis label"`
	Field string `json:"field" yaml:"field" jsonschema:"description=Data field for Y-axis"`
}

// VisualizeDataWithChartRequest is the chart visualization configuration
type VisualizeDataWithChartRequest struct {
	Title       string           `json:"title" yaml:"title" validate:"required" jsonschema:"description=Chart title"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty" jsonschema:"description=Optional chart description"`
	ChartType   ChartType        `json:"chart_type" yaml:"chart_type" validate:"required,oneof=line bar pie scatter area radar heatmap histogram" jsonschema:"enum=line,enum=bar,enum=pie,enum=scatter,enum=area,enum=radar,enum=heatmap,enum=histogram,description=Type of chart to render"`
	Data        []map[string]any `json:"data" yaml:"data" validate:"required" jsonschema:"description=Chart data points"`
	XAxis       *XAxis           `json:"x_axis,omitempty" yaml:"x_axis,omitempty" jsonschema:"description=X-axis configuration"`
	YAxis       *YAxis           `json:"y_axis,omitempty" yaml:"y_axis,omitempty" jsonschema:"description=Y-axis configuration"`
	Options     map[string]any   `json:"options,omitempty" yaml:"options,omitempty" jsonschema:"description=Additional chart configuration options"`
}

// VisualizeDataWithChartConfig declares the chart tool
var VisualizeDataWithChartConfig = tools.Config{
	Name:             VisualizeDataWithChartName,
	Description:      "Generate a dynamic chart for data visualization and user review.",
	InputDescription: "Chart visualization configuration",
	Output:           outputSchema[string]("user feedback or confirmation on the chart"),
}

// NewVisualizeDataWithChart returns the chart tool, it has no human-in-the-loop policy
func NewVisualizeDataWithChart() *tools.Func[VisualizeDataWithChartRequest, string] {
	return tools.MustNew(VisualizeDataWithChartConfig,
		canned[VisualizeDataWithChartRequest]("chart visualized: answer will appear in human in the loop reject message"))
}
