package eval

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"kifu/pkg/shogi"
)

// Model tensor names.
const (
	InputName  = "board_in"
	OutputName = "winner_out"
)

var ortInit sync.Mutex

// initRuntime initializes the process-wide onnxruntime environment once.
func initRuntime(libPath string) error {
	ortInit.Lock()
	defer ortInit.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: ort.InitializeEnvironment: %w", ErrModelUnavailable, err)
	}
	return nil
}

// ONNXScorer runs a model taking [n, 9, 9, 56] features and returning
// [n, 2] softmax win probabilities (black, white). It is safe for concurrent use.
type ONNXScorer struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

// NewONNXScorer loads modelPath. libPath may be empty to use the default
// onnxruntime shared library lookup.
func NewONNXScorer(modelPath, libPath string) (*ONNXScorer, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrModelUnavailable)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if err := initRuntime(libPath); err != nil {
		return nil, err
	}
	sess, err := ort.NewDynamicAdvancedSession(modelPath, []string{InputName}, []string{OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: ort.NewDynamicAdvancedSession: %w", ErrModelUnavailable, err)
	}
	return &ONNXScorer{session: sess}, nil
}

func (s *ONNXScorer) Score(candidates []shogi.Boards, _ shogi.Color) ([]WinProb, error) {
	n := len(candidates)
	data := make([]float32, n*shogi.FeatureLen)
	for i := range candidates {
		shogi.EncodeFeaturesInto(&candidates[i], data[i*shogi.FeatureLen:(i+1)*shogi.FeatureLen])
	}
	in, err := ort.NewTensor(ort.NewShape(int64(n), shogi.BoardSize, shogi.BoardSize, shogi.FeatureChannels), data)
	if err != nil {
		return nil, fmt.Errorf("eval: input tensor: %w", err)
	}
	defer in.Destroy()
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(n), 2))
	if err != nil {
		return nil, fmt.Errorf("eval: output tensor: %w", err)
	}
	defer out.Destroy()

	s.mu.Lock()
	err = s.session.Run([]ort.Value{in}, []ort.Value{out})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("eval: run model: %w", err)
	}

	raw := out.GetData()
	probs := make([]WinProb, n)
	for i := range probs {
		probs[i] = WinProb{Black: raw[2*i], White: raw[2*i+1]}
	}
	return probs, nil
}

func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
