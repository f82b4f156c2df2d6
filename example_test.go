package mediadex

import (
	"context"
	"fmt"
	"log"
)

func ExampleEngine_SearchVector() {
	ctx := context.Background()

	engine, err := New(nil, nil, nil, func(o *Options) {
		o.Dimension = 2
	})
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	if _, err := engine.Ingest(ctx, []float32{1, 0}, "media-poster"); err != nil {
		log.Fatal(err)
	}
	if _, err := engine.Ingest(ctx, []float32{0, 1}, "media-trailer"); err != nil {
		log.Fatal(err)
	}

	results, err := engine.SearchVector(ctx, []float32{1, 0}, 2)
	if err != nil {
		log.Fatal(err)
	}

	for _, r := range results {
		fmt.Println(r.MediaID)
	}
	// Output:
	// media-poster
	// media-trailer
}
