package chart

import (
	"errors"
	"io"

	gochart "github.com/wcharczuk/go-chart/v2"
)

// ErrNoBuckets is returned when rendering an empty series.
var ErrNoBuckets = errors.New("no buckets to render")

// RenderPNG draws the bucket series as a PNG bar chart of hours per bucket.
func RenderPNG(buckets []Bucket, w io.Writer) error {
	if len(buckets) == 0 {
		return ErrNoBuckets
	}

	bars := make([]gochart.Value, len(buckets))
	for i, b := range buckets {
		bars[i] = gochart.Value{
			Label: b.Label,
			Value: b.Hours,
		}
	}

	graph := gochart.BarChart{
		Height:   300,
		BarWidth: 40,
		YAxis: gochart.YAxis{
			Name: "Hours",
		},
		Bars: bars,
	}
	return graph.Render(gochart.PNG, w)
}
