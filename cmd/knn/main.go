package main

import "github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/cli"

func main() {
	cli.Execute()
}
