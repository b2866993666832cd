package main

import (
	"github.com/eidolon-live/eidolon/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
