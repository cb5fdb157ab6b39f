package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// PCMWriter receives signed 16-bit little-endian PCM
type PCMWriter interface {
	io.Writer
	SampleRate() int
	Channels() int
}

// Decoder turns a file path or URL into PCM
type Decoder interface {
	Decode(ctx context.Context, location string, out PCMWriter, startMs int64) error
	Duration(ctx context.Context, location string) (time.Duration, error)
}

// FFmpegDecoder decodes with the ffmpeg and ffprobe binaries
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegDecoder locates ffmpeg and ffprobe in PATH
func NewFFmpegDecoder() (*FFmpegDecoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	return &FFmpegDecoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

func (d *FFmpegDecoder) decodeArgs(location string, out PCMWriter, startMs int64) []string {
	var args []string
	if startMs > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", float64(startMs)/1000))
	}
	if isRemote(location) {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1")
	}
	return append(args,
		"-nostdin",
		"-loglevel", "error",
		"-i", location,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(out.Channels()),
		"-ar", strconv.Itoa(out.SampleRate()),
		"-",
	)
}

// Decode streams location into out, starting startMs into the track. It
// returns when the input is exhausted or ctx is cancelled.
func (d *FFmpegDecoder) Decode(ctx context.Context, location string, out PCMWriter, startMs int64) error {
	cmd := exec.CommandContext(ctx, d.ffmpegPath, d.decodeArgs(location, out, startMs)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	buf := make([]byte, 4096)
	var copyErr error
	for {
		if ctx.Err() != nil {
			copyErr = ctx.Err()
			break
		}
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				copyErr = fmt.Errorf("failed to write to output: %w", werr)
				break
			}
		}
		if err != nil {
			break
		}
	}

	if copyErr != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return copyErr
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed for %s: %w", location, err)
	}
	return nil
}

// Duration asks ffprobe for the length of location
func (d *FFmpegDecoder) Duration(ctx context.Context, location string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, d.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		location,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func isRemote(location string) bool {
	return strings.Contains(location, "://")
}
