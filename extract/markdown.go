package extract

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter builds the shared, goroutine-safe converter. The base
// plugin drops non-content nodes the extraction stages may have left behind,
// commonmark renders standard markdown, and the table plugin keeps tabular
// structure with minimal cell padding.
func newMarkdownConverter() *converter.Converter {
	plugins := []converter.Plugin{
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	}
	return converter.NewConverter(converter.WithPlugins(plugins...))
}
