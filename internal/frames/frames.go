package frames

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/semdiff/videodiff/internal/models"
)

// VideoRef points at one extracted frame directory under the layout
// root/<class>/<video_id>/.
type VideoRef struct {
	Class    string
	VideoID  string
	FrameDir string
}

// ListVideos walks a frames root and returns every class/video frame
// directory it contains, in lexical order.
func ListVideos(root string) ([]VideoRef, error) {
	classes, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read frames root %q: %w", root, err)
	}

	var videos []VideoRef
	for _, cls := range classes {
		if !cls.IsDir() {
			continue
		}
		clsDir := filepath.Join(root, cls.Name())
		vids, err := os.ReadDir(clsDir)
		if err != nil {
			return nil, fmt.Errorf("read class dir %q: %w", clsDir, err)
		}
		for _, vid := range vids {
			if !vid.IsDir() {
				continue
			}
			videos = append(videos, VideoRef{
				Class:    cls.Name(),
				VideoID:  vid.Name(),
				FrameDir: filepath.Join(clsDir, vid.Name()),
			})
		}
	}
	return videos, nil
}

func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// LoadDir loads an ordered frame sequence from a directory. Files are taken
// in name order, capped at maxFrames when maxFrames > 0. Frames larger than
// maxSide on either dimension are scaled down before being re-encoded as
// JPEG, which keeps image token cost bounded.
func LoadDir(dir string, maxFrames, maxSide int) ([]models.Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isFrameFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if maxFrames > 0 && len(names) > maxFrames {
		names = names[:maxFrames]
	}

	out := make([]models.Frame, 0, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		img, err := imaging.Open(path)
		if err != nil {
			return nil, fmt.Errorf("decode frame %q: %w", path, err)
		}

		b := img.Bounds()
		if maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
			img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			return nil, fmt.Errorf("encode frame %q: %w", path, err)
		}

		out = append(out, models.Frame{
			Index: i,
			Name:  name,
			JPEG:  buf.Bytes(),
		})
	}
	return out, nil
}
