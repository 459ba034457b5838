package relax_test

import (
	"context"
	"fmt"

	"github.com/gitrdm/ddbound/pkg/linear"
	"github.com/gitrdm/ddbound/pkg/relax"
)

func ExampleBound() {
	rows := []*linear.Row{
		linear.NewRow(1, linear.LE, []float64{1, 1}, []int{0, 1}),
		linear.NewRow(1, linear.LE, []float64{1, 1, 1}, []int{1, 2, 3}),
		linear.NewRow(5, linear.LE, []float64{2, 1, 3, 1, 4}, []int{0, 1, 2, 3, 4}),
	}
	sub := relax.NewSubproblem(5, rows, []float64{3, 2, 4, 1, 5})

	cfg := relax.DefaultConfig()
	cfg.LagIterLimit = 0
	res, err := relax.Bound(context.Background(), sub, cfg)
	if err != nil {
		panic(err)
	}
	fmt.Printf("diagram only: %.3f (relaxed rows: %d)\n", res.Bound, res.Relaxed)

	// Output:
	// diagram only: 12.000 (relaxed rows: 1)
}
