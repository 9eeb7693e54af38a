package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bapple/internal/archive"
)

type frameStats struct {
	Count  int   `json:"count"`
	Total  int64 `json:"total_bytes"`
	Min    int   `json:"min_bytes"`
	Max    int   `json:"max_bytes"`
	Mean   int   `json:"mean_bytes"`
	Median int   `json:"median_bytes"`
}

type archiveInfo struct {
	Path       string           `json:"path"`
	FileBytes  int64            `json:"file_bytes"`
	AudioBytes int              `json:"audio_bytes"`
	Metadata   archive.Metadata `json:"metadata"`
	Frames     frameStats       `json:"frames"`
}

func summarizeFrameSizes(sizes []int) frameStats {
	stats := frameStats{Count: len(sizes)}
	if len(sizes) == 0 {
		return stats
	}
	sorted := slices.Clone(sizes)
	slices.Sort(sorted)
	for _, s := range sorted {
		stats.Total += int64(s)
	}
	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	stats.Mean = int(stats.Total / int64(len(sorted)))
	stats.Median = sorted[len(sorted)/2]
	return stats
}

func loadArchiveInfo(path string) (archiveInfo, error) {
	reader, err := archive.Open(path)
	if err != nil {
		return archiveInfo{}, err
	}
	defer reader.Close()

	info := archiveInfo{
		Path:     path,
		Metadata: reader.Metadata(),
		Frames:   summarizeFrameSizes(reader.FrameSizes()),
	}
	if abs, err := filepath.Abs(path); err == nil {
		info.Path = abs
	}
	if st, err := os.Stat(path); err == nil {
		info.FileBytes = st.Size()
	}
	audio, err := reader.Audio()
	if err != nil {
		return archiveInfo{}, err
	}
	info.AudioBytes = len(audio)
	return info, nil
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "info <archive>",
		Short:       "Show archive metadata and frame size statistics",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := loadArchiveInfo(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderArchiveInfo(info))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func renderArchiveInfo(info archiveInfo) string {
	meta := info.Metadata
	dash := func(v string) string {
		if v == "" {
			return "-"
		}
		return v
	}
	size := "-"
	if meta.Width > 0 && meta.Height > 0 {
		size = fmt.Sprintf("%dx%d", meta.Width, meta.Height)
	}
	created := "-"
	if !meta.CreatedAt.IsZero() {
		created = meta.CreatedAt.Local().Format(time.DateTime) + " (" + humanize.Time(meta.CreatedAt) + ")"
	}
	audio := "none"
	if meta.AudioPresent {
		audio = humanize.IBytes(uint64(info.AudioBytes))
	}

	rows := [][]string{
		{"Path", info.Path},
		{"File size", humanize.IBytes(uint64(info.FileBytes))},
		{"Version", meta.Version},
		{"Frames", humanize.Comma(int64(meta.FrameCount))},
		{"FPS", strconv.FormatFloat(meta.FPS, 'f', 3, 64)},
		{"Frame time", meta.Frametime().String()},
		{"Duration", meta.Duration().Round(time.Millisecond).String()},
		{"Size", size},
		{"Style", dash(meta.Style)},
		{"Charset", dash(meta.Charset)},
		{"Colorized", yesNo(meta.Colorized)},
		{"Audio", audio},
		{"Source", dash(meta.Source)},
		{"Archive ID", dash(meta.ArchiveID)},
		{"Encoder", dash(meta.EncoderVersion)},
		{"Created", created},
	}
	summary := renderTable([]string{"Field", "Value"}, rows, false)

	fs := info.Frames
	frameRows := [][]string{{
		humanize.Comma(int64(fs.Count)),
		humanize.IBytes(uint64(fs.Total)),
		humanize.IBytes(uint64(fs.Min)),
		humanize.IBytes(uint64(fs.Median)),
		humanize.IBytes(uint64(fs.Mean)),
		humanize.IBytes(uint64(fs.Max)),
	}}
	frames := renderTable(
		[]string{"Frames", "Compressed", "Min", "Median", "Mean", "Max"},
		frameRows,
		true,
	)
	return summary + "\n" + frames
}
