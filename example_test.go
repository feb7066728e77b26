package lsmvec_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hupe1980/lsmvec"
	"github.com/hupe1980/lsmvec/model"
)

func Example() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "lsmvec-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := lsmvec.Open(ctx, dir, lsmvec.WithMemtableFlushSize(100))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close(ctx)

	_, err = store.AddBatch(ctx, []lsmvec.Item{
		{ID: "north", Vector: []float64{0, 1}, Metadata: model.Metadata{"label": "N"}},
		{ID: "east", Vector: []float64{1, 0}, Metadata: model.Metadata{"label": "E"}},
		{ID: "north-east", Vector: []float64{1, 1}},
	})
	if err != nil {
		log.Fatal(err)
	}

	similar, err := store.SearchSimilar(ctx, []float64{0, 2}, 1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s %.2f %v\n", similar[0].ID, similar[0].Score, similar[0].Metadata["label"])

	nearby, err := store.SearchNearby(ctx, []float64{0.9, 0.9}, 2)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range nearby {
		fmt.Printf("%s %.2f\n", r.ID, r.Distance)
	}

	// Output:
	// north 1.00 N
	// north-east 0.14
	// east 0.91
}

func ExampleStore_Delete() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "lsmvec-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := lsmvec.Open(ctx, dir)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close(ctx)

	id, err := store.Add(ctx, []float64{1, 2, 3}, lsmvec.WithID("doc-1"))
	if err != nil {
		log.Fatal(err)
	}

	removed, _ := store.Delete(ctx, id)
	again, _ := store.Delete(ctx, id)
	n, _ := store.Count(ctx)
	fmt.Println(removed, again, n)

	// Output:
	// true false 0
}
