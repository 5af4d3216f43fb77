package fixtures

import (
	"bytes"
	_ "embed"
	"io"
)

//go:embed demo_seed.yaml
var demoSeed []byte

// DemoSeed returns the bundled demo data in the memory store's seed format.
func DemoSeed() io.Reader {
	return bytes.NewReader(demoSeed)
}
