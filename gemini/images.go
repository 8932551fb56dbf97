package gemini

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadImages resolves image sources to absolute file paths.
// A source can be a file, a directory or a glob pattern. Duplicates are
// removed and the result is naturally sorted by filename.
func LoadImages(sources []string) ([]string, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no image sources provided")
	}

	var allPaths []string
	seen := make(map[string]bool)

	for _, source := range sources {
		paths, err := resolveSource(source)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", source, err)
		}

		for _, p := range paths {
			absPath, err := filepath.Abs(p)
			if err != nil {
				return nil, fmt.Errorf("failed to get absolute path for %s: %w", p, err)
			}
			if !seen[absPath] {
				seen[absPath] = true
				allPaths = append(allPaths, absPath)
			}
		}
	}

	if len(allPaths) == 0 {
		return nil, fmt.Errorf("no valid image files found")
	}

	sort.Slice(allPaths, func(i, j int) bool {
		return naturalSort(filepath.Base(allPaths[i]), filepath.Base(allPaths[j]))
	})

	return allPaths, nil
}

func resolveSource(source string) ([]string, error) {
	info, err := os.Stat(source)
	if err == nil {
		if info.IsDir() {
			return loadFromDirectory(source)
		}
		if IsImageFile(source) {
			return []string{source}, nil
		}
		return nil, fmt.Errorf("not a supported image file: %s", source)
	}

	matches, err := filepath.Glob(source)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files found matching: %s", source)
	}

	var imagePaths []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if IsImageFile(match) {
			imagePaths = append(imagePaths, match)
		}
	}
	return imagePaths, nil
}

func loadFromDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if IsImageFile(path) {
			images = append(images, path)
		}
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no image files found in directory")
	}
	return images, nil
}

// SupportedImageTypes lists the extensions MIMEType recognizes
var SupportedImageTypes = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif", ".heic"}

// IsImageFile checks if a file has a supported image extension
func IsImageFile(path string) bool {
	return MIMEType(filepath.Ext(path)) != ""
}

// MIMEType returns the MIME type for an image extension, or "" if unsupported
func MIMEType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	case ".heic":
		return "image/heic"
	default:
		return ""
	}
}

// ReadImage validates and reads one image file
func ReadImage(path string) (*ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s exceeds maximum size of %s", path, FormatSize(MaxFileSize))
	}
	mime := MIMEType(filepath.Ext(path))
	if mime == "" {
		return nil, fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &ImageFile{
		Path:     path,
		Filename: filepath.Base(path),
		Size:     info.Size(),
		MIMEType: mime,
		Data:     data,
	}, nil
}

// ReadImages reads every path, stopping at the first failure
func ReadImages(paths []string) ([]*ImageFile, error) {
	if len(paths) > MaxImagesPerRequest {
		return nil, fmt.Errorf("too many images: %d (maximum %d)", len(paths), MaxImagesPerRequest)
	}
	out := make([]*ImageFile, 0, len(paths))
	for i, p := range paths {
		img, err := ReadImage(p)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		out = append(out, img)
	}
	return out, nil
}

// InlinePart wraps raw image bytes as an inline data part
func InlinePart(mimeType string, data []byte) *Part {
	return &Part{
		InlineData: &InlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		},
	}
}

// naturalSort orders filenames so that page_2.png comes before page_10.png
func naturalSort(a, b string) bool {
	aLower := strings.ToLower(a)
	bLower := strings.ToLower(b)

	aPos, bPos := 0, 0

	for aPos < len(aLower) && bPos < len(bLower) {
		aChar := aLower[aPos]
		bChar := bLower[bPos]

		aIsDigit := aChar >= '0' && aChar <= '9'
		bIsDigit := bChar >= '0' && bChar <= '9'

		if aIsDigit && bIsDigit {
			aNumStart := aPos
			bNumStart := bPos

			for aPos < len(aLower) && aLower[aPos] >= '0' && aLower[aPos] <= '9' {
				aPos++
			}
			for bPos < len(bLower) && bLower[bPos] >= '0' && bLower[bPos] <= '9' {
				bPos++
			}

			aNum := parseNumber(aLower[aNumStart:aPos])
			bNum := parseNumber(bLower[bNumStart:bPos])
			if aNum != bNum {
				return aNum < bNum
			}
		} else {
			if aChar != bChar {
				return aChar < bChar
			}
			aPos++
			bPos++
		}
	}

	return len(aLower) < len(bLower)
}

func parseNumber(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

// FormatSize formats a byte size as a human-readable string
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
