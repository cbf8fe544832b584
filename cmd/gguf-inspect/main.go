package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/23skdu/dashcam-scribe/internal/gguf"
)

func main() {
	path := flag.String("checkpoint", "", "Path to GGUF checkpoint")
	match := flag.String("match", "", "Only list tensors whose name contains this substring")
	flag.Parse()

	if *path == "" {
		log.Fatal("--checkpoint is required")
	}

	f, err := gguf.LoadFile(*path)
	if err != nil {
		log.Fatalf("Failed to load checkpoint: %v", err)
	}
	defer f.Close()

	fmt.Println(f.Summarize().String())

	fmt.Println("\n=== Metadata ===")
	keys := make([]string, 0, len(f.KV))
	for k := range f.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-30s = %v\n", k, f.KV[k])
	}

	fmt.Println("\n=== Tensors ===")
	shown := 0
	for _, t := range f.Tensors {
		if *match != "" && !strings.Contains(t.Name, *match) {
			continue
		}
		fmt.Printf("%-40s type=%d dims=%v elements=%d\n",
			t.Name, t.Type, t.Dimensions, t.NumElements())
		shown++
	}
	if shown == 0 {
		fmt.Println("no tensors matched")
	}
}
