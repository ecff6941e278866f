package cmd

import (
	"imagematch/config"
	"imagematch/imageprocessor"
	"imagematch/logging"
)

// extractor bundles a FeatureExtractor with the optional exiftool probe so
// both are released together.
type extractor struct {
	*imageprocessor.FeatureExtractor
	probe *imageprocessor.ExifProbe
}

func newExtractor(cfg config.Config) (*extractor, error) {
	for _, ext := range imageprocessor.UnknownExtensions(cfg.Extensions) {
		logging.LogWarning("No dedicated decoder for %s files, OpenCV will be tried", ext)
	}

	backbone, err := imageprocessor.NewDNNBackbone(imageprocessor.BackboneOptions{
		ModelPath:   cfg.Model.Path,
		ConfigPath:  cfg.Model.ConfigPath,
		OutputLayer: cfg.Model.OutputLayer,
		Device:      cfg.Model.Device,
	})
	if err != nil {
		return nil, err
	}

	out := &extractor{}
	loader := imageprocessor.LoaderOptions{
		MaxFileBytes: cfg.Image.MaxFileBytes,
		MaxDimension: cfg.Image.MaxDimension,
	}
	if cfg.Image.ProbeExif {
		probe, err := imageprocessor.NewExifProbe()
		if err != nil {
			logging.LogWarning("exiftool unavailable, header checks limited to Go decoders: %v", err)
		} else {
			out.probe = probe
			loader.Probe = probe
		}
	}

	fe, err := imageprocessor.NewFeatureExtractor(imageprocessor.ExtractorOptions{
		Loader: loader,
		Preprocess: imageprocessor.PreprocessOptions{
			Strategy:   cfg.Image.Preprocess,
			InputSize:  cfg.Image.InputSize,
			ResizeSize: cfg.Image.ResizeSize,
		},
		Dim: cfg.Model.Dim,
	}, backbone)
	if err != nil {
		backbone.Close()
		if out.probe != nil {
			out.probe.Close()
		}
		return nil, err
	}
	out.FeatureExtractor = fe
	return out, nil
}

func (e *extractor) Close() error {
	if e.probe != nil {
		if err := e.probe.Close(); err != nil {
			logging.LogWarning("Failed to stop exiftool: %v", err)
		}
	}
	return e.FeatureExtractor.Close()
}
