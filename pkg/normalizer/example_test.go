package normalizer_test

import (
	"fmt"

	"github.com/Sumatoshi-tech/rtalign/pkg/normalizer"
)

func ExampleNormalizer_LoadBatch() {
	n, err := normalizer.New(normalizer.DefaultCapacity)
	if err != nil {
		panic(err)
	}

	n.SetTarget(0, 1)

	if err := n.LoadBatch([]float64{80, 90, 100, 110}); err != nil {
		panic(err)
	}

	for !n.Empty() {
		v, _ := n.Pop()
		fmt.Printf("%.3f\n", v)
	}
	// Output:
	// -1.342
	// -0.447
	// 0.447
	// 1.342
}

func ExampleNormalizer_Push() {
	n, _ := normalizer.New(2)

	fmt.Println(n.Push(1), n.Push(3), n.Push(5))

	skipped, ok := n.DiscardUnread(1)
	fmt.Println(skipped, ok, n.UnreadCount())

	_, ok = n.DiscardUnread(1)
	fmt.Println(ok)
	// Output:
	// true true false
	// 1 true 1
	// false
}
