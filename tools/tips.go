package tools

import (
	"context"
	"math/rand/v2"

	"github.com/zoobzio/chainz"
)

// PythonTips is the pool PythonTip draws from.
var PythonTips = []string{
	"Use list comprehensions instead of loops when possible!",
	"Use `enumerate()` when you need both index and value in a loop.",
	"Use f-strings for cleaner and faster string formatting.",
	"Use `with open(...)` to automatically close files.",
	"Avoid using mutable default arguments like lists or dicts.",
	"Leverage built-in functions like `sum()`, `max()`, and `any()` for cleaner code.",
	"Use `zip()` to iterate over multiple sequences at once.",
	"Use type hints to improve readability and catch bugs early.",
	"Use virtual environments to manage dependencies cleanly.",
	"Remember: `is` is for identity, `==` is for equality.",
}

// PythonTip returns a tool that hands out a random tip.
// pick chooses an index in [0, n); nil uses math/rand.
func PythonTip(pick func(n int) int) chainz.Tool {
	if pick == nil {
		pick = rand.IntN
	}
	return chainz.Tool{
		Name:        "get_python_tip",
		Description: "Gives a random Python tip.",
		Triggers:    []string{"python tip", "tip"},
		Handler: func(context.Context, *chainz.Session, string) (string, error) {
			return "Here's a Python tip: " + PythonTips[pick(len(PythonTips))], nil
		},
	}
}
