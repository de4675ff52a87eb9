package main

import "github.com/vistore-tech/catalog-sync/internal/app"

func main() {
	app.Run()
}
