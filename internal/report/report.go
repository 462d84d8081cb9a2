// Package report renders the periodic per-torrent usage report: a
// PNG line chart of achieved-vs-target upload ratio across recent
// announce cycles, and a PDF wrapping that chart with a short summary
// table. It mirrors the original daemon's report_sent bookkeeping —
// at most one report per torrent per cycle — without reimplementing
// its Telegram delivery, which stays out of scope.
package report

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"codeberg.org/go-fonts/liberation/liberationsansregular"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"codeberg.org/go-pdf/fpdf"

	"github.com/raainshe/ratemind/internal/logging"
	"github.com/raainshe/ratemind/internal/persistence"
)

// TorrentSummary is the per-torrent input to Generate, gathered by the
// coordinator from the same TorrentState it just closed a cycle on.
type TorrentSummary struct {
	Hash  string
	Name  string
	Phase string
}

// Generator renders reports to a fixed output directory and caches a
// pre-rendered title banner so repeated reports don't re-rasterize the
// same text.
type Generator struct {
	store     *persistence.Store
	outputDir string
	logger    *logging.Logger
	banner    []byte
}

// NewGenerator builds a Generator, rendering the title banner once.
func NewGenerator(store *persistence.Store, outputDir string) (*Generator, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report output dir: %w", err)
	}

	banner, err := renderBanner("ratemind — rate control report")
	if err != nil {
		return nil, fmt.Errorf("failed to render report banner: %w", err)
	}

	return &Generator{
		store:     store,
		outputDir: outputDir,
		logger:    logging.GetLogger(),
		banner:    banner,
	}, nil
}

// Generate writes <hash>.png and <hash>.pdf for one torrent's recent
// cycle history, and refreshes the daemon-wide overview.png alongside
// it. Called once per torrent per closed cycle by the coordinator.
func (g *Generator) Generate(summary TorrentSummary) error {
	stats, err := g.store.LoadCycleStats(summary.Hash)
	if err != nil {
		return fmt.Errorf("failed to load cycle stats for %s: %w", summary.Hash, err)
	}
	if len(stats) == 0 {
		return nil
	}

	pngPath := filepath.Join(g.outputDir, summary.Hash+".png")
	if err := renderRatioChart(pngPath, summary.Name, stats); err != nil {
		return fmt.Errorf("failed to render ratio chart: %w", err)
	}

	pdfPath := filepath.Join(g.outputDir, summary.Hash+".pdf")
	if err := g.renderPDF(pdfPath, summary, stats, pngPath); err != nil {
		return fmt.Errorf("failed to render PDF report: %w", err)
	}

	if all, err := g.store.LoadAllCycleStats(); err != nil {
		g.logger.WithError(err).Warn("Failed to load all cycle stats for overview chart")
	} else if len(all) > 0 {
		overviewPath := filepath.Join(g.outputDir, "overview.png")
		if err := renderOverviewChart(overviewPath, all); err != nil {
			g.logger.WithError(err).Warn("Failed to render daemon-wide overview chart")
		}
	}

	return nil
}

// renderRatioChart draws a line chart of achieved/target upload ratio
// across recent cycles, with a reference line at 1.0, using the same
// go-chart library the bot used for disk usage pie charts.
func renderRatioChart(path, name string, stats []persistence.CycleStats) error {
	xs := make([]float64, len(stats))
	ys := make([]float64, len(stats))
	target := make([]float64, len(stats))
	for i, s := range stats {
		xs[i] = float64(i)
		ys[i] = s.Ratio
		target[i] = 1.0
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Upload ratio per cycle: %s", name),
		Width:  800,
		Height: 400,
		Background: chart.Style{
			FillColor: drawing.ColorWhite,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "achieved",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("3498DB"),
					StrokeWidth: 2,
				},
			},
			chart.ContinuousSeries{
				Name:    "target",
				XValues: xs,
				YValues: target,
				Style: chart.Style{
					StrokeColor:     drawing.ColorFromHex("E74C3C"),
					StrokeWidth:     1,
					StrokeDashArray: []float64{5, 5},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// renderOverviewChart draws the daemon-wide precision trend across
// every tracked torrent's closed cycles, ordered by closure time. It
// uses gonum/plot rather than go-chart so both charting libraries in
// the stack get a real, non-overlapping job.
func renderOverviewChart(path string, stats []persistence.CycleStats) error {
	sort.Slice(stats, func(i, j int) bool { return stats[i].ClosedAt.Before(stats[j].ClosedAt) })

	pts := make(plotter.XYs, len(stats))
	for i, s := range stats {
		pts[i].X = float64(i)
		pts[i].Y = s.Ratio
	}

	p := plot.New()
	p.Title.Text = "Daemon-wide upload ratio trend"
	p.X.Label.Text = "cycle closure order"
	p.Y.Label.Text = "achieved / target ratio"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line, plotter.NewGrid())

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}

// renderPDF assembles the banner, a short per-cycle table, and the
// ratio chart PNG into a single-page report.
func (g *Generator) renderPDF(path string, summary TorrentSummary, stats []persistence.CycleStats, chartPNG string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	bannerPath := filepath.Join(filepath.Dir(path), ".banner.png")
	if err := os.WriteFile(bannerPath, g.banner, 0o644); err == nil {
		pdf.ImageOptions(bannerPath, 10, 8, 180, 0, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	pdf.SetY(30)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, fmt.Sprintf("%s (%s)", summary.Name, summary.Hash[:minInt(8, len(summary.Hash))]))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Phase: %s    Cycles recorded: %d", summary.Phase, len(stats)))
	pdf.Ln(12)

	pdf.ImageOptions(chartPNG, 10, pdf.GetY(), 190, 0, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	return pdf.OutputFileAndClose(path)
}

// renderBanner rasterizes a title string using the Liberation Sans
// font bundled by go-fonts/liberation, so the PDF's header text
// doesn't depend on whatever fonts happen to be installed on the host
// running the daemon.
func renderBanner(text string) ([]byte, error) {
	f, err := opentype.Parse(liberationsansregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse liberation font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 28, DPI: 96, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("failed to build font face: %w", err)
	}
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, 900, 60))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 0x2c, G: 0x3e, B: 0x50, A: 0xff}),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(10), Y: fixed.I(40)},
	}
	d.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
