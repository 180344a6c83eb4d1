package linesink_test

import (
	"fmt"
	"os"
	"sync"

	"github.com/loykin/linesink"
)

func Example() {
	w := linesink.New("example", linesink.NopCloser(os.Stdout))

	var wg sync.WaitGroup
	for _, word := range []string{"hello", "world"} {
		wg.Add(1)
		go func(word string) {
			defer wg.Done()
			l := w.Line()
			fmt.Fprint(l, word)
			fmt.Fprint(l, "\n")
		}(word)
		wg.Wait()
	}

	l := w.Line()
	fmt.Fprint(l, "no newline, drained on close")
	_ = w.Close()
	// Output:
	// hello
	// world
	// no newline, drained on close
}
