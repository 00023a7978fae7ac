package property

import (
	"github.com/discochess/faultkv/internal/randsrc"
)

// generator produces Inputs with arbitrary bytes in keys and values.
type generator struct {
	rand randsrc.Source
	cfg  GeneratorConfig
}

func newGenerator(src randsrc.Source, cfg GeneratorConfig) *generator {
	return &generator{rand: src, cfg: cfg}
}

func (g *generator) next() Input {
	return Input{
		Key:   string(g.bytes(g.cfg.MaxKeyLen)),
		Value: g.bytes(g.cfg.MaxValueLen),
		Keys:  g.distinctKeys(),
	}
}

func (g *generator) bytes(maxLen int) []byte {
	b := make([]byte, g.rand.IntN(maxLen+1))
	for i := range b {
		b[i] = byte(g.rand.IntN(256))
	}
	return b
}

// distinctKeys returns between 1 and MaxKeys distinct keys. Short key
// spaces may yield fewer than requested, never zero.
func (g *generator) distinctKeys() []string {
	want := 1 + g.rand.IntN(g.cfg.MaxKeys)
	seen := make(map[string]struct{}, want)
	keys := make([]string, 0, want)
	for attempts := 0; len(keys) < want && attempts < want*8; attempts++ {
		k := string(g.bytes(g.cfg.MaxKeyLen))
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
