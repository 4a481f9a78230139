// Validate a planned decoder - checks that every encoding of a description
// decodes back to itself and measures decode throughput.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/sarchlab/decgen/config"
	"github.com/sarchlab/decgen/emu"
	"github.com/sarchlab/decgen/insts"
	"github.com/sarchlab/decgen/loader"
	"github.com/sarchlab/decgen/plan"
	"github.com/sarchlab/decgen/tree"
)

type sample struct {
	addr    uint64
	raw     *insts.RawInstruction
	handler string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: decoder_validation <description.yaml>\n")
		os.Exit(1)
	}

	desc, err := loader.LoadDescription(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading description: %v\n", err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	layout := cfg.Layout(desc.ReadSize, desc.BigEndian)
	raws, err := insts.NewExpander(layout).ExpandAll(desc.Instructions, cfg.SizeExpectation(desc.Size))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error expanding description: %v\n", err)
		os.Exit(1)
	}
	root, err := tree.NewBuilder(cfg.BuilderOptions(cfg.Logger())...).Build(raws)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building tree: %v\n", err)
		os.Exit(1)
	}
	planner, err := plan.NewPlanner(cfg.Planner(layout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating planner: %v\n", err)
		os.Exit(1)
	}
	dec, err := planner.Decode(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error planning decoder: %v\n", err)
		os.Exit(1)
	}

	// Lay out a few random encodings of every instruction
	machine := emu.NewMachine(planner.Config(), dec)
	rng := rand.New(rand.NewSource(1))
	var samples []sample
	addr := uint64(0x1000)
	for _, raw := range raws {
		for i := 0; i < 4; i++ {
			values := make(map[string]uint64)
			for _, name := range raw.Operands() {
				w := raw.OperandWidth(name)
				values[name] = rng.Uint64() & (^uint64(0) >> uint(64-w))
			}
			code, err := raw.Encode(values, layout)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error encoding %s: %v\n", raw.Name, err)
				os.Exit(1)
			}
			machine.Memory().LoadProgram(addr, code)
			samples = append(samples, sample{
				addr:    addr,
				raw:     raw,
				handler: cfg.HandlerPrefix + plan.Ident(raw.Mnemonic),
			})
			addr += uint64(len(code))
		}
	}

	// Check decoding
	failures := 0
	for _, s := range samples {
		res := machine.Decode(s.addr)
		if res.Err != nil || res.Handler != s.handler || res.Length != s.raw.Bytes() {
			fmt.Printf("  MISMATCH %s at 0x%x: handler %q length %d err %v\n",
				s.raw.Name, s.addr, res.Handler, res.Length, res.Err)
			failures++
		}
	}

	// Warm up
	for i := 0; i < 1000; i++ {
		machine.Decode(samples[i%len(samples)].addr)
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 20000
	for i := 0; i < iterations; i++ {
		machine.Decode(samples[i%len(samples)].addr)
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc
	st := tree.Collect(root, raws)

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Encodings: %d, tree depth %d..%d (avg %.2f)\n",
		len(raws), st.MinDepth, st.MaxDepth, st.AvgDepth)
	fmt.Printf("Samples checked: %d, mismatches: %d\n", len(samples), failures)
	fmt.Printf("Total decode operations: %d\n", iterations)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(iterations)/elapsed.Seconds())
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(iterations))
	fmt.Printf("Bytes per decode: %.1f\n", float64(allocatedBytes)/float64(iterations))

	if failures > 0 {
		os.Exit(1)
	}
}
