package ffmpeg

import (
	"fmt"
	"strings"
)

// output describes how a mime type is produced.
type output struct {
	Muxer      string
	VideoCodec string
	AudioCodec string
	VideoArgs  []string
	MuxerArgs  []string
}

func outputFor(mimeType string) (output, bool) {
	container, params, _ := strings.Cut(mimeType, ";")
	container = strings.ToLower(strings.TrimSpace(container))
	codecs := strings.ToLower(params)

	switch container {
	case "video/webm":
		out := output{
			Muxer:      "webm",
			VideoCodec: "libvpx",
			AudioCodec: "libopus",
			VideoArgs:  []string{"-deadline", "realtime", "-cpu-used", "8", "-b:v", "2M"},
			MuxerArgs:  []string{"-cluster_time_limit", "1000"},
		}
		if strings.Contains(codecs, "vp9") {
			out.VideoCodec = "libvpx-vp9"
			out.VideoArgs = append(out.VideoArgs, "-row-mt", "1")
		}
		if strings.Contains(codecs, "vorbis") {
			out.AudioCodec = "libvorbis"
		}
		return out, true
	case "video/mp4":
		if codecs != "" && !strings.Contains(codecs, "avc1") {
			return output{}, false
		}
		return output{
			Muxer:      "mp4",
			VideoCodec: "libx264",
			AudioCodec: "aac",
			VideoArgs:  []string{"-preset", "veryfast", "-tune", "zerolatency", "-pix_fmt", "yuv420p"},
			MuxerArgs:  []string{"-movflags", "frag_keyframe+empty_moov+default_base_moof"},
		}, true
	}
	return output{}, false
}

// recordArgs builds the command line of a recording process writing the
// container to stdout. Stdin stays open: ffmpeg finishes cleanly on "q".
func recordArgs(video Input, audio []Input, out output) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	args = append(args, video.Args()...)
	for _, in := range audio {
		args = append(args, in.Args()...)
	}

	args = append(args, "-map", "0:v:0")
	switch len(audio) {
	case 0:
	case 1:
		args = append(args, "-map", "1:a:0")
	default:
		var labels strings.Builder
		for i := range audio {
			fmt.Fprintf(&labels, "[%d:a]", i+1)
		}
		filter := fmt.Sprintf("%samix=inputs=%d:duration=longest:dropout_transition=0[aout]", labels.String(), len(audio))
		args = append(args, "-filter_complex", filter, "-map", "[aout]")
	}

	args = append(args, "-c:v", out.VideoCodec)
	args = append(args, out.VideoArgs...)
	if len(audio) > 0 {
		args = append(args, "-c:a", out.AudioCodec)
	}
	args = append(args, out.MuxerArgs...)
	return append(args, "-f", out.Muxer, "pipe:1")
}
