package video

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ErrNotVideo is returned when a file has no decodable video stream.
var ErrNotVideo = errors.New("no video stream")

// Info describes the first video stream of a file. Width and Height are the
// displayed size, after any rotation recorded in the container.
type Info struct {
	Stream     int     `json:"stream"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Rotation   int     `json:"rotation"`
	FrameRate  float64 `json:"frame_rate"`
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frame_count"`
}

type probeOutput struct {
	Streams []struct {
		Index        int    `json:"index"`
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
		Disposition  struct {
			AttachedPic int `json:"attached_pic"`
		} `json:"disposition"`
		Tags struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe on path.
func Probe(path string) (*Info, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, errors.Wrapf(err, "probing %s", path)
	}
	return parseProbe(out)
}

func parseProbe(data string) (*Info, error) {
	var p probeOutput
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, errors.Wrap(err, "decoding probe output")
	}

	for _, s := range p.Streams {
		// cover art shows up as a single-frame video stream
		if s.CodecType != "video" || s.Disposition.AttachedPic != 0 {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return nil, errors.Wrapf(ErrNotVideo, "stream has size %dx%d", s.Width, s.Height)
		}

		// avg_frame_rate is what players show; r_frame_rate covers streams
		// that report 0/0 for the average
		fps, err := parseRate(s.AvgFrameRate)
		if err != nil || fps <= 0 {
			if fps, err = parseRate(s.RFrameRate); err != nil {
				return nil, err
			}
		}

		info := &Info{Stream: s.Index, Width: s.Width, Height: s.Height, FrameRate: fps}
		rotate := s.Tags.Rotate
		for _, sd := range s.SideDataList {
			if sd.Rotation != nil {
				rotate = strconv.FormatFloat(*sd.Rotation, 'f', 0, 64)
			}
		}
		info.Rotation = normalizeRotation(parseFloat(rotate))
		if info.Rotation == 90 || info.Rotation == 270 {
			info.Width, info.Height = info.Height, info.Width
		}
		info.Duration = parseFloat(s.Duration)
		if info.Duration == 0 {
			info.Duration = parseFloat(p.Format.Duration)
		}
		info.FrameCount, _ = strconv.Atoi(s.NbFrames)
		return info, nil
	}
	return nil, ErrNotVideo
}

// normalizeRotation maps degrees onto 0, 90, 180 or 270.
func normalizeRotation(deg float64) int {
	r := int(math.Round(deg/90)) * 90 % 360
	if r < 0 {
		r += 360
	}
	return r
}

// parseRate reads ffprobe rates such as "30000/1001" or "25".
func parseRate(s string) (float64, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid frame rate %q", s)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid frame rate %q", s)
	}
	if d == 0 {
		return 0, nil
	}
	return n / d, nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
