package main

import (
	"github.com/aistock/tdxdata/entry"
)

func main() {
	entry.RunCmd()
}
