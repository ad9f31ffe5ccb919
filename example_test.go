package chemgo_test

import (
	"fmt"
	"log"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
)

// Example_fromArrays demonstrates creating a sharded dataset from in-memory
// arrays and reading it back.
func Example_fromArrays() {
	dir, err := os.MkdirTemp("", "chemgo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	x := mat.NewDense(4, 2, []float64{
		0.1, 0.2,
		0.3, 0.4,
		0.5, 0.6,
		0.7, 0.8,
	})
	y := mat.NewDense(4, 1, []float64{0, 1, 1, 0})
	w := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	ids := []string{"CCO", "CCN", "CCC", "COC"}

	ds, err := chemgo.FromArrays(dir, x, y, w, ids, []string{"toxicity"}, chemgo.WithShardSize(2))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("rows:", ds.Len())
	fmt.Println("shards:", ds.NumShards())
	fmt.Println("tasks:", ds.TaskNames())
	// Output:
	// rows: 4
	// shards: 2
	// tasks: [toxicity]
}

// Example_batches demonstrates batched iteration in canonical row order.
func Example_batches() {
	dir, err := os.MkdirTemp("", "chemgo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	x := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{0, 1, 0, 1, 0})
	w := mat.NewDense(5, 1, []float64{1, 1, 1, 1, 1})
	ids := []string{"m0", "m1", "m2", "m3", "m4"}

	ds, err := chemgo.FromArrays(dir, x, y, w, ids, nil, chemgo.WithShardSize(3))
	if err != nil {
		log.Fatal(err)
	}

	for batch, err := range ds.Batches(2) {
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(batch.IDs)
	}
	// Output:
	// [m0 m1]
	// [m2 m3]
	// [m4]
}
