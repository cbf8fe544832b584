package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/23skdu/dashcam-scribe/internal/dstore"
)

func main() {
	dir := flag.String("dir", "", "Datastore directory")
	keyDim := flag.Int("key-dim", 768, "Key record width")
	valDim := flag.Int("val-dim", 581, "Value record width")
	peek := flag.Int("peek", 3, "Number of leading records to summarize")
	flag.Parse()

	if *dir == "" {
		log.Fatal("--dir is required")
	}

	s, err := dstore.Open(*dir, *keyDim, *valDim)
	if err != nil {
		log.Fatalf("Failed to open datastore: %v", err)
	}
	defer s.Close()

	fmt.Printf("Datastore: %s\n", *dir)
	fmt.Printf("  records:  %d / %d (%.1f%% full)\n",
		s.Offset(), s.Capacity(), 100*float64(s.Offset())/float64(s.Capacity()))
	fmt.Printf("  key dim:  %d (%d bytes on disk)\n", s.KeyDim(), s.Capacity()*int64(s.KeyDim())*4)
	fmt.Printf("  val dim:  %d (%d bytes on disk)\n", s.ValDim(), s.Capacity()*int64(s.ValDim())*4)

	n := int64(*peek)
	if n > s.Offset() {
		n = s.Offset()
	}
	for i := int64(0); i < n; i++ {
		fmt.Printf("  record %d: |key|=%.4f |val|=%.4f\n", i, norm(s.Key(i)), norm(s.Val(i)))
	}
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
