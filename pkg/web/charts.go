package web

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/rocky-hockey/pkg/journal"
)

// handleEpisodeChart renders recent predictions as an HTML scatter plot:
// where each approach was expected to cross the defensive line against
// how far up the table the prediction was made.
func (s *Server) handleEpisodeChart(c *fiber.Ctx) error {
	if s.deps.Journal == nil {
		return errNotWired
	}
	eps, err := s.deps.Journal.RecentEpisodes(c.UserContext(), c.QueryInt("limit", 500))
	if err != nil {
		return err
	}

	page, err := renderEpisodeChart(eps)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(page)
}

func renderEpisodeChart(eps []journal.EpisodeRecord) ([]byte, error) {
	var direct, bank []opts.ScatterData
	for _, ep := range eps {
		d := opts.ScatterData{Value: []interface{}{ep.Predicted.X, ep.From.Y}}
		if ep.Bounced {
			bank = append(bank, d)
		} else {
			direct = append(direct, d)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Rocky Hockey episodes", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Predicted crossings", Subtitle: fmt.Sprintf("%d episodes", len(eps))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "crossing x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "predicted from y (px)", NameLocation: "middle", NameGap: 35}),
	)
	scatter.AddSeries("direct", direct, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	scatter.AddSeries("bank", bank, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
