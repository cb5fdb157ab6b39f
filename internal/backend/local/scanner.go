package local

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// SupportedExtensions are the audio file extensions we recognize
var SupportedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".wav":  true,
	".wma":  true,
	".alac": true,
	".opus": true,
}

// Tags holds the metadata read from one audio file. Keys are normalized:
// lower case with spaces and underscores removed.
type Tags map[string]string

func (t Tags) get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(t[k]); v != "" {
			return v
		}
	}
	return ""
}

func normalizeTagKey(key string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(key))
}

// FileInfo describes one audio file found by a scan
type FileInfo struct {
	Root       int    // index into the scanned directories
	RelPath    string // slash separated path below the root
	Path       string
	Size       int64
	ModifiedAt int64 // unix milliseconds
	Duration   int64 // milliseconds, 0 when unknown
	Bitrate    int   // kbit/s
	Tags       Tags
}

// Scanner walks media directories and reads tags with ffprobe
type Scanner struct {
	logger      *log.Logger
	excluded    map[string]bool
	ffprobePath string
	nicePath    string // runs ffprobe at low priority when present
	workers     int
}

// NewScanner creates a scanner. Files whose extension is in excluded are
// skipped even when supported.
func NewScanner(excluded []string, logger *log.Logger) *Scanner {
	ffprobePath, _ := exec.LookPath("ffprobe")
	nicePath, _ := exec.LookPath("nice")
	if ffprobePath == "" {
		logger.Warn("ffprobe not found, tags will come from file names only")
	}

	s := &Scanner{
		logger:      logger,
		excluded:    make(map[string]bool, len(excluded)),
		ffprobePath: ffprobePath,
		nicePath:    nicePath,
		workers:     4,
	}
	for _, ext := range excluded {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.excluded[ext] = true
	}
	return s
}

func (s *Scanner) wanted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return SupportedExtensions[ext] && !s.excluded[ext]
}

// Scan walks every root and returns the audio files found, in path order
// per root. Roots that cannot be read are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, roots []string) ([]FileInfo, error) {
	start := time.Now()
	var files []FileInfo
	for i, root := range roots {
		found, err := s.walk(ctx, i, root)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("skipping media dir", "dir", root, "err", err)
			continue
		}
		files = append(files, found...)
	}

	s.extractAll(ctx, files)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.logger.Info("scan complete", "files", len(files), "dirs", len(roots), "took", time.Since(start).Round(time.Millisecond))
	return files, nil
}

func (s *Scanner) walk(ctx context.Context, index int, root string) ([]FileInfo, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "scan", Path: root, Err: os.ErrInvalid}
	}

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.wanted(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{
			Root:       index,
			RelPath:    filepath.ToSlash(rel),
			Path:       path,
			Size:       fi.Size(),
			ModifiedAt: fi.ModTime().UnixMilli(),
		})
		return nil
	})
	s.logger.Debug("discovered audio files", "dir", root, "files", len(files))
	return files, err
}

// extractAll fills in tags using a small worker pool
func (s *Scanner) extractAll(ctx context.Context, files []FileInfo) {
	if s.ffprobePath == "" || len(files) == 0 {
		return
	}

	jobs := make(chan int)
	var processed int64
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s.extract(ctx, &files[i])
				if n := atomic.AddInt64(&processed, 1); n%500 == 0 {
					s.logger.Info("reading tags", "done", n, "total", len(files))
				}
			}
		}()
	}

	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
}

type probeResult struct {
	Format struct {
		Duration string            `json:"duration"`
		BitRate  string            `json:"bit_rate"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		Tags map[string]string `json:"tags"`
	} `json:"streams"`
}

func (s *Scanner) extract(ctx context.Context, f *FileInfo) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration,bit_rate:format_tags:stream_tags",
		"-of", "json",
		f.Path,
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	if s.nicePath != "" {
		cmd = exec.CommandContext(ctx, s.nicePath, append([]string{"-n", "19", s.ffprobePath}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, s.ffprobePath, args...)
	}
	output, err := cmd.Output()
	if err != nil {
		s.logger.Debug("ffprobe failed", "path", f.Path, "err", err)
		return
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return
	}
	f.Tags, f.Duration, f.Bitrate = parseProbe(result)
}

// parseProbe merges format and stream tags, format tags winning
func parseProbe(result probeResult) (Tags, int64, int) {
	tags := make(Tags)
	if len(result.Streams) > 0 {
		for k, v := range result.Streams[0].Tags {
			tags[normalizeTagKey(k)] = v
		}
	}
	for k, v := range result.Format.Tags {
		tags[normalizeTagKey(k)] = v
	}

	var duration int64
	if seconds, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		duration = int64(seconds * 1000)
	}
	var bitrate int
	if bps, err := strconv.Atoi(result.Format.BitRate); err == nil {
		bitrate = bps / 1000
	}
	return tags, duration, bitrate
}
