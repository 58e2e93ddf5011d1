package main

import (
	"log"

	"github.com/avinash9807/Url-uploader-with-online-player/setup"
	"github.com/avinash9807/Url-uploader-with-online-player/test"
)

func main() {
	if err := setup.DB(setup.DefaultConnection, 1); err != nil {
		log.Fatal(err)
	}
	if err := test.TruncateTables(nil); err != nil {
		log.Fatal(err)
	}
}
