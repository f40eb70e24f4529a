package resnet

import "fmt"
import "sort"

// BlockKind selects the residual block used by every stage.
type BlockKind int

const (
	// Basic is the two 3x3 convolution block (expansion 1).
	Basic BlockKind = iota
	// Bottleneck is the 1x1, 3x3, 1x1 block (expansion 4) with the stride on the 3x3 convolution.
	Bottleneck
)

// Expansion is the ratio of block output channels to its planes.
func (k BlockKind) Expansion() int {
	if k == Bottleneck {
		return 4
	}
	return 1
}

func (k BlockKind) String() string {
	if k == Bottleneck {
		return "Bottleneck"
	}
	return "BasicBlock"
}

// Config describes a residual network topology.
type Config struct {
	Arch   string
	Block  BlockKind
	Layers [4]int
}

// DefaultArch is the topology the embedding weights are usually trained with.
const DefaultArch = "resnet18"

var archs = map[string]Config{
	"resnet18":  {Arch: "resnet18", Block: Basic, Layers: [4]int{2, 2, 2, 2}},
	"resnet34":  {Arch: "resnet34", Block: Basic, Layers: [4]int{3, 4, 6, 3}},
	"resnet50":  {Arch: "resnet50", Block: Bottleneck, Layers: [4]int{3, 4, 6, 3}},
	"resnet101": {Arch: "resnet101", Block: Bottleneck, Layers: [4]int{3, 4, 23, 3}},
	"resnet152": {Arch: "resnet152", Block: Bottleneck, Layers: [4]int{3, 8, 36, 3}},
}

// ConfigFor returns the topology of a named architecture.
func ConfigFor(arch string) (Config, error) {
	cfg, ok := archs[arch]
	if !ok {
		return Config{}, fmt.Errorf("resnet: unknown architecture %q (known: %v)", arch, Archs())
	}
	return cfg, nil
}

// Archs lists the known architecture names.
func Archs() []string {
	names := make([]string, 0, len(archs))
	for k := range archs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OutDim is the embedding width produced by the topology.
func (c Config) OutDim() int {
	return 512 * c.Block.Expansion()
}
