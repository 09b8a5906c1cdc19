package quality

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"emgpipe/internal/logging"
	"emgpipe/internal/mat73"
	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

// RMS noise bands in microvolts, matching the acquisition tool's
// channel-quality classification.
const (
	rmsExcellentMax = 5
	rmsGoodMax      = 10
	rmsOkMax        = 15
	rmsTroubledMax  = 20
)

var rmsQualityColors = map[string]string{
	"excellent": "#22c55e",
	"good":      "#93c5fd",
	"ok":        "#f97316",
	"troubled":  "#d946ef",
	"bad":       "#ef4444",
}

// ChannelRMS is the noise measurement for one channel of one recording.
type ChannelRMS struct {
	File          string
	Channel       int
	RMSMicrovolts float64
	Quality       string
	Flagged       bool
}

// FileRMS aggregates the channels of one recording.
type FileRMS struct {
	File     string
	MeanRMS  float64
	StdRMS   float64
	MinRMS   float64
	MaxRMS   float64
	Quality  string
	Channels []ChannelRMS
}

// RMSReport is the channel-noise analysis over every cleaned recording in
// a work folder.
type RMSReport struct {
	Files           []FileRMS
	GrandMean       float64
	GrandStd        float64
	Median          float64
	DeviationFactor float64
	TotalChannels   int
	FlaggedChannels int
	QualityCounts   map[string]int
	CSVPath         string
	HTMLPath        string
}

// RMSQuality buckets a channel RMS value in microvolts.
func RMSQuality(rmsMicrovolts float64) string {
	switch {
	case rmsMicrovolts <= rmsExcellentMax:
		return "excellent"
	case rmsMicrovolts <= rmsGoodMax:
		return "good"
	case rmsMicrovolts <= rmsOkMax:
		return "ok"
	case rmsMicrovolts <= rmsTroubledMax:
		return "troubled"
	default:
		return "bad"
	}
}

// RunRMS measures per-channel RMS noise across every cleaned recording and
// writes the CSV and HTML artifacts into the analysis folder. Channels
// whose RMS falls outside the median band are flagged.
func (a *Analyzer) RunRMS(layout workfolder.Layout) (*RMSReport, error) {
	inputs, err := listRecordings(layout.LineNoiseCleaned())
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, services.Wrap(services.ErrStructureMissing, "quality", "rms",
			"no cleaned recordings under "+workfolder.DirLineNoiseCleaned, nil)
	}
	report := &RMSReport{
		DeviationFactor: a.deviation,
		QualityCounts:   map[string]int{},
	}
	var all []float64
	for _, path := range inputs {
		file, err := a.measureRecording(path)
		if err != nil {
			return nil, err
		}
		report.Files = append(report.Files, file)
		for _, ch := range file.Channels {
			all = append(all, ch.RMSMicrovolts)
		}
	}
	report.TotalChannels = len(all)
	report.GrandMean = stat.Mean(all, nil)
	report.GrandStd = stat.PopStdDev(all, nil)
	report.Median = median(all)
	for fi := range report.Files {
		for ci := range report.Files[fi].Channels {
			ch := &report.Files[fi].Channels[ci]
			if outsideMedianBand(ch.RMSMicrovolts, report.Median, a.deviation) {
				ch.Flagged = true
				report.FlaggedChannels++
			}
			report.QualityCounts[ch.Quality]++
		}
	}

	analysisDir, err := layout.EnsureDir(workfolder.DirAnalysis)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "quality", "rms", "prepare analysis folder", err)
	}
	report.CSVPath = filepath.Join(analysisDir, workfolder.RMSReportCSVName)
	report.HTMLPath = filepath.Join(analysisDir, workfolder.RMSReportHTMLName)
	if err := writeRMSCSV(report.CSVPath, report); err != nil {
		return nil, err
	}
	if err := writeRMSChart(report.HTMLPath, report); err != nil {
		return nil, err
	}
	a.logger.Info("rms analysis complete",
		logging.Int("recordings", len(report.Files)),
		logging.Int("channels", report.TotalChannels),
		logging.Int("flagged", report.FlaggedChannels))
	return report, nil
}

func listRecordings(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrStructureMissing, "quality", "rms", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mat") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

func (a *Analyzer) measureRecording(path string) (FileRMS, error) {
	channels, err := readSignalMatrix(path)
	if err != nil {
		return FileRMS{}, err
	}
	file := FileRMS{File: filepath.Base(path)}
	values := make([]float64, 0, len(channels))
	for i, samples := range channels {
		if len(samples) == 0 {
			continue
		}
		// Recordings store millivolts; reports use microvolts.
		rms := math.Sqrt(floats.Dot(samples, samples)/float64(len(samples))) * 1000
		file.Channels = append(file.Channels, ChannelRMS{
			File:          file.File,
			Channel:       i,
			RMSMicrovolts: rms,
			Quality:       RMSQuality(rms),
		})
		values = append(values, rms)
	}
	if len(values) == 0 {
		return FileRMS{}, services.Wrap(services.ErrValidation, "quality", "rms",
			path+" has no channel data", nil)
	}
	file.MeanRMS = stat.Mean(values, nil)
	file.StdRMS = stat.PopStdDev(values, nil)
	file.MinRMS = floats.Min(values)
	file.MaxRMS = floats.Max(values)
	file.Quality = RMSQuality(file.MeanRMS)
	return file, nil
}

// readSignalMatrix returns channel-major sample rows from a recording
// container: a top-level data matrix, or the signal struct that editor
// containers carry.
func readSignalMatrix(path string) ([][]float64, error) {
	vars, err := mat73.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "quality", "rms", path, err)
	}
	data := vars["data"]
	if data == nil {
		if sig := vars["signal"]; sig != nil && sig.HasField("data") {
			data, _ = sig.Field("data")
		}
	}
	if data == nil {
		return nil, services.Wrap(services.ErrStructureMissing, "quality", "rms",
			path+" has no data matrix", nil)
	}
	rows, err := data.Matrix()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "quality", "rms", path, err)
	}
	return rows, nil
}

// median returns the midpoint sample median.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func outsideMedianBand(v, median, factor float64) bool {
	if median <= 0 || factor <= 0 {
		return false
	}
	return v > median*factor || v < median/factor
}

func writeRMSCSV(path string, report *RMSReport) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	record := []string{"file", "channel", "rms_uv", "quality", "flagged"}
	if err := w.Write(record); err != nil {
		return services.Wrap(services.ErrTransient, "quality", "rms", "encode csv", err)
	}
	for _, file := range report.Files {
		for _, ch := range file.Channels {
			record = []string{
				ch.File,
				strconv.Itoa(ch.Channel),
				strconv.FormatFloat(ch.RMSMicrovolts, 'f', 4, 64),
				ch.Quality,
				strconv.FormatBool(ch.Flagged),
			}
			if err := w.Write(record); err != nil {
				return services.Wrap(services.ErrTransient, "quality", "rms", "encode csv", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return services.Wrap(services.ErrTransient, "quality", "rms", "encode csv", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "quality", "rms", path, err)
	}
	return nil
}

func writeRMSChart(path string, report *RMSReport) error {
	x := make([]string, 0, len(report.Files))
	bars := make([]opts.BarData, 0, len(report.Files))
	for _, file := range report.Files {
		x = append(x, file.File)
		bars = append(bars, opts.BarData{
			Value:     file.MeanRMS,
			ItemStyle: &opts.ItemStyle{Color: rmsQualityColors[file.Quality]},
		})
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "RMS Noise Quality",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "RMS noise per recording",
			Subtitle: fmt.Sprintf("overall %.2f +/- %.2f uV, median %.2f uV, %d/%d channels flagged (factor %.1f)",
				report.GrandMean, report.GrandStd, report.Median,
				report.FlaggedChannels, report.TotalChannels, report.DeviationFactor),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "RMS (uV)"}),
	)
	bar.SetXAxis(x).AddSeries("mean rms", bars,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return services.Wrap(services.ErrTransient, "quality", "rms", "render chart", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "quality", "rms", path, err)
	}
	return nil
}
