package main

import "github.com/visionsuite/camstream/internal/bootstrap"

func main() {
	bootstrap.Run()
}
