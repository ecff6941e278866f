package imageprocessor

import (
	"fmt"
	"os"
	"sync"

	"imagematch/logging"

	"gocv.io/x/gocv"
)

// Backbone runs a frozen network on a preprocessed blob and returns the
// flattened feature map.
type Backbone interface {
	Forward(blob gocv.Mat) ([]float32, error)
	Close() error
}

// Inference devices
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// BackboneOptions describes the model files and where to run them
type BackboneOptions struct {
	ModelPath   string
	ConfigPath  string
	OutputLayer string // empty selects the network's final output
	Device      string
}

// DNNBackbone wraps an OpenCV DNN network loaded for inference only.
type DNNBackbone struct {
	net         gocv.Net
	outputLayer string
	mu          sync.Mutex
}

// NewDNNBackbone loads the network once. Any format gocv.ReadNet accepts
// works (ONNX, Caffe, TensorFlow, Darknet).
func NewDNNBackbone(options BackboneOptions) (*DNNBackbone, error) {
	if _, err := os.Stat(options.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	net := gocv.ReadNet(options.ModelPath, options.ConfigPath)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("failed to read network from %s", options.ModelPath)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	switch options.Device {
	case DeviceCPU, "":
	case DeviceCUDA:
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	default:
		net.Close()
		return nil, fmt.Errorf("unknown device %q", options.Device)
	}
	if err := net.SetPreferableBackend(backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(target); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	logging.LogInfo("Loaded model %s (device=%s, output=%q)", options.ModelPath, options.Device, options.OutputLayer)
	return &DNNBackbone{net: net, outputLayer: options.OutputLayer}, nil
}

// Forward implements Backbone. Calls are serialized because a Net holds
// per-inference state.
func (b *DNNBackbone) Forward(blob gocv.Mat) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.net.SetInput(blob, "")
	out := b.net.Forward(b.outputLayer)
	defer out.Close()
	if out.Empty() {
		return nil, fmt.Errorf("network produced no output")
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	features := make([]float32, len(data))
	copy(features, data)
	return features, nil
}

// Close releases the network
func (b *DNNBackbone) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.net.Close()
}
