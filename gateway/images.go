package gateway

import (
	"otoanaliz/appraisal"
	"otoanaliz/gemini"
)

// LoadImages resolves files, directories and glob patterns and reads the
// photos for analysis, in natural filename order.
func LoadImages(sources []string) ([]appraisal.Image, error) {
	paths, err := gemini.LoadImages(sources)
	if err != nil {
		return nil, err
	}
	files, err := gemini.ReadImages(paths)
	if err != nil {
		return nil, err
	}
	images := make([]appraisal.Image, 0, len(files))
	for _, f := range files {
		images = append(images, appraisal.Image{Name: f.Filename, MIMEType: f.MIMEType, Data: f.Data})
	}
	return images, nil
}
