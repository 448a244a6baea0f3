package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/grect"

	"github.com/zycbobby/quadtree"
)

var (
	inserts  int
	searches int
	bounds   string
	itemSize float64
	selSize  float64
	maxItems int
	maxDepth int
	seed     int64
)

func main() {
	flag.IntVar(&inserts, "n", 1000000, "Number of rectangles to insert")
	flag.IntVar(&searches, "q", 100000, "Number of searches to run")
	flag.StringVar(&bounds, "bounds", "[0 0],[4096 4096]", "Tree bounds")
	flag.Float64Var(&itemSize, "size", 8, "Maximum rectangle dimension")
	flag.Float64Var(&selSize, "selsize", 64, "Maximum selector dimension")
	flag.IntVar(&maxItems, "maxitems", 8, "Max items per node before subdividing")
	flag.IntVar(&maxDepth, "maxdepth", 8, "Max tree depth")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	r := grect.Get(bounds)
	if len(r.Min) < 2 || len(r.Max) < 2 {
		fmt.Fprintf(os.Stderr, "invalid bounds '%s'\n", bounds)
		os.Exit(1)
	}
	rand.Seed(seed)

	cfg := quadtree.Config{
		X: r.Min[0], Y: r.Min[1],
		W: r.Max[0] - r.Min[0], H: r.Max[1] - r.Min[1],
		MaxItems: maxItems, MaxDepth: maxDepth,
	}
	tr := quadtree.New(cfg)

	items := make([]quadtree.Item, inserts)
	for i := range items {
		items[i] = randRect(cfg, itemSize)
	}
	start := time.Now()
	tr.InsertAll(items)
	report("INSERT", inserts, time.Since(start))

	selectors := make([]quadtree.Item, searches)
	for i := range selectors {
		selectors[i] = randRect(cfg, selSize)
	}
	var hits int
	start = time.Now()
	for _, selector := range selectors {
		tr.Retrieve(selector, func(item quadtree.Item) bool {
			hits++
			return true
		})
	}
	elapsed := time.Since(start)
	report("SEARCH", searches, elapsed)
	fmt.Printf("  %s hits, %.1f per search\n",
		humanize.Comma(int64(hits)), float64(hits)/float64(searches))
}

func randRect(cfg quadtree.Config, size float64) *quadtree.Rect {
	w := rand.Float64() * size
	h := rand.Float64() * size
	return &quadtree.Rect{
		X: cfg.X + rand.Float64()*(cfg.W-w),
		Y: cfg.Y + rand.Float64()*(cfg.H-h),
		W: w, H: h,
	}
}

func report(op string, count int, elapsed time.Duration) {
	fmt.Printf("%s: %s ops in %.2fs, %s ops/sec\n",
		op, humanize.Comma(int64(count)), elapsed.Seconds(),
		humanize.Comma(int64(float64(count)/elapsed.Seconds())))
}
